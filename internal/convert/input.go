// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/pdiddy/docconvert/pkg/types"
)

// ValidateInput confirms that the source at path exists and holds non-blank
// text in the named encoding. It returns the file size in bytes. An empty
// encoding name means UTF-8.
func ValidateInput(path, encodingName string) (int64, error) {
	size, _, err := readInput(path, encodingName)
	return size, err
}

// readInput is ValidateInput that also returns the decoded text.
func readInput(path, encodingName string) (int64, string, error) {
	format := inputFormatName(path)

	info, err := os.Stat(path)
	if err != nil {
		return 0, "", &InputError{Kind: MissingInput, Path: path, Format: format}
	}
	if info.IsDir() {
		return 0, "", &InputError{Kind: MissingInput, Path: path, Format: format}
	}
	// A size that cannot be determined counts as zero.
	size := max(info.Size(), 0)

	raw, err := os.ReadFile(path)
	if err != nil {
		return size, "", &InputError{Kind: UnreadableInput, Path: path, Format: format, Cause: err}
	}
	text, err := decode(raw, encodingName)
	if err != nil {
		return size, "", &InputError{Kind: UnreadableInput, Path: path, Format: format, Cause: err}
	}
	if strings.TrimSpace(text) == "" {
		return size, "", &InputError{Kind: EmptyInput, Path: path, Format: format}
	}
	return size, text, nil
}

// decode converts raw bytes in the named encoding to a UTF-8 string.
func decode(raw []byte, name string) (string, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return "", err
	}
	// The UTF-8 decoder substitutes invalid sequences instead of failing.
	if enc == unicode.UTF8 {
		if !utf8.Valid(raw) {
			return "", errors.New("invalid UTF-8 byte sequence")
		}
		return string(raw), nil
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", name, err)
	}
	return string(out), nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if canonical, _ := htmlindex.Name(enc); canonical == "utf-8" {
		return unicode.UTF8, nil
	}
	return enc, nil
}

func inputFormatName(path string) string {
	f, err := types.FormatFromPath(path)
	if err != nil {
		return ""
	}
	return string(f)
}
