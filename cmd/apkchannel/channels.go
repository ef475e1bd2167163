package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultChannelFile = "channel.txt"
	defaultOutputDir   = "ChannelApk"
)

// readChannelList reads one channel per line. Blank lines and lines starting with #
// are skipped, as are repeated channels.
func readChannelList(r io.Reader) ([]string, error) {
	var channels []string
	seen := make(map[string]bool)

	sc := bufio.NewScanner(r)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.ContainsAny(line, `/\`) || line == "." || line == ".." {
			return nil, fmt.Errorf("line %d: channel %q is not usable in a file name", lineNo, line)
		}

		if seen[line] {
			continue
		}
		seen[line] = true
		channels = append(channels, line)
	}

	if err := sc.Err(); err != nil {
		return nil, err
	}
	return channels, nil
}

// outputName is the file name of the copy of base carrying channel.
func outputName(base, channel string) string {
	name := filepath.Base(base)
	return strings.TrimSuffix(name, filepath.Ext(name)) + "_" + channel + ".apk"
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
