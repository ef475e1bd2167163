package apkchannel

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/avast/apkparser"
)

var errNoSchemeV1 = errors.New("no JAR signature")

// schemeV1 describes the JAR signature of an APK: the main manifest and every signature
// file that has a matching signature block file. The signatures are not checked.
type schemeV1 struct {
	manifest       *manifest
	signatureFiles map[string]*manifest
}

func newSchemeV1(apk *apkparser.ZipReader) (*schemeV1, error) {
	scheme := schemeV1{
		signatureFiles: make(map[string]*manifest),
	}

	const prefix = "META-INF/"
	var signatureBlocks []*apkparser.ZipReaderFile
	sfFiles := map[string]*apkparser.ZipReaderFile{}
	for _, f := range apk.FilesOrdered {
		if !strings.HasPrefix(f.Name, prefix) || f.IsDir {
			continue
		}

		switch {
		case f.Name == "META-INF/MANIFEST.MF":
			if scheme.manifest != nil {
				return nil, errors.New("Manifest already parsed!")
			}
			m, err := readManifest(f)
			if err != nil {
				return nil, fmt.Errorf("failed to parse main manifest: %s", err.Error())
			}
			scheme.manifest = m
		case strings.HasSuffix(f.Name, ".RSA") || strings.HasSuffix(f.Name, ".DSA") || strings.HasSuffix(f.Name, ".EC"):
			signatureBlocks = append(signatureBlocks, f)
		case strings.HasSuffix(f.Name, ".SF"):
			if _, prs := sfFiles[f.Name]; !prs {
				sfFiles[f.Name] = f
			}
		}
	}

	if scheme.manifest == nil {
		return nil, errNoSchemeV1
	}

	for _, blockFile := range signatureBlocks {
		name := blockFile.Name
		sfname := name[:strings.LastIndexByte(name, '.')] + ".SF"

		sf, prs := sfFiles[sfname]
		if !prs {
			continue
		}

		m, err := readManifest(sf)
		if err != nil {
			return nil, fmt.Errorf("%s: %s", sfname, err.Error())
		}
		if _, prs := m.main[attrSignatureVersion]; !prs {
			return nil, fmt.Errorf("%s: missing %s", sfname, attrSignatureVersion)
		}
		scheme.signatureFiles[sfname] = m

		// The same signature file can't be used by another signature block
		delete(sfFiles, sfname)
	}

	if len(scheme.signatureFiles) == 0 {
		return nil, errNoSchemeV1
	}
	return &scheme, nil
}

// strippedSchemes returns the schemes that a signature file claims the APK was also
// signed with, but that are not among verified. Such an APK had its newer signature
// removed to downgrade it to JAR signing.
func (p *schemeV1) strippedSchemes(verified []int) ([]int, error) {
	var res []int
	for name, sf := range p.signatureFiles {
		signed, prs := sf.main[attrAndroidApkSigned]
		if !prs {
			continue
		}

		for _, tok := range strings.Split(signed, ",") {
			schemeId, err := strconv.Atoi(strings.TrimSpace(tok))
			if err != nil {
				return nil, fmt.Errorf("%s: invalid %s value %q", name, attrAndroidApkSigned, signed)
			}
			if schemeId > 1 && !slices.Contains(verified, schemeId) && !slices.Contains(res, schemeId) {
				res = append(res, schemeId)
			}
		}
	}
	return res, nil
}
