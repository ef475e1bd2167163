package apkchannel

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/avast/apkparser"
)

const (
	attrSignatureVersion = "Signature-Version"
	attrAndroidApkSigned = "X-Android-APK-Signed"

	// LINE_LENGTH_LIMIT = 72; - 2 for separator
	maxAttrNameLength = 70
)

// manifest is a parsed JAR manifest or signature file: the main section followed by
// named per-entry sections.
type manifest struct {
	main    map[string]string
	entries map[string]map[string]string
}

func readManifest(f *apkparser.ZipReaderFile) (*manifest, error) {
	if err := f.Open(); err != nil {
		return nil, err
	}
	defer f.Close()

	var err error
	for f.Next() {
		var data []byte
		if data, err = io.ReadAll(f); err != nil {
			continue
		}

		var m *manifest
		if m, err = parseManifest(data); err != nil {
			continue
		}
		return m, nil
	}

	if err == nil {
		err = fmt.Errorf("Failed to open %s", f.Name)
	}
	return nil, err
}

func parseManifest(data []byte) (*manifest, error) {
	m := &manifest{
		main:    make(map[string]string),
		entries: make(map[string]map[string]string),
	}

	sections, err := manifestSections(data)
	if err != nil {
		return nil, err
	}

	for i, section := range sections {
		if i == 0 {
			m.main = section
			continue
		}

		name, prs := section["Name"]
		if !prs {
			return nil, errors.New("Entry is not named")
		}
		if _, prs := m.entries[name]; prs {
			return nil, fmt.Errorf("More than one entry with the same name: %s", name)
		}
		delete(section, "Name")
		m.entries[name] = section
	}
	return m, nil
}

// manifestSections splits data into blank-line separated sections of attributes,
// joining continuation lines (those starting with a space).
func manifestSections(data []byte) ([]map[string]string, error) {
	if bytes.IndexByte(data, 0) != -1 {
		return nil, errors.New("NUL character in manifest")
	}

	var sections []map[string]string
	var current map[string]string
	var lastName string

	for _, line := range splitManifestLines(data) {
		switch {
		case len(line) == 0:
			current, lastName = nil, ""
		case line[0] == ' ':
			if lastName == "" {
				return nil, errors.New("Continuation line without a header")
			}
			current[lastName] += string(line[1:])
		default:
			name, value, found := bytes.Cut(line, []byte(": "))
			if !found {
				return nil, fmt.Errorf("Invalid header structure '%s'", line)
			}
			if !isValidAttrName(name) {
				return nil, fmt.Errorf("Invalid attribute name in manifest: '%s'", name)
			}

			if current == nil {
				current = make(map[string]string)
				sections = append(sections, current)
			}
			lastName = string(name)
			current[lastName] = string(value)
		}
	}

	if len(sections) == 0 {
		return nil, errors.New("Empty manifest")
	}
	return sections, nil
}

// splitManifestLines splits on "\r\n", "\n" or "\r".
func splitManifestLines(data []byte) [][]byte {
	var lines [][]byte
	for len(data) > 0 {
		idx := bytes.IndexAny(data, "\r\n")
		if idx == -1 {
			lines = append(lines, data)
			break
		}

		lines = append(lines, data[:idx])
		if data[idx] == '\r' && idx+1 < len(data) && data[idx+1] == '\n' {
			idx++
		}
		data = data[idx+1:]
	}
	return lines
}

func isValidAttrName(name []byte) bool {
	if len(name) == 0 || len(name) > maxAttrNameLength {
		return false
	}

	for _, c := range name {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			c == '_' || c == '-' ||
			(c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}
