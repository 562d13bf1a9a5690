package inference

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// LoadLabels reads class names from a newline-delimited file.
//
// Line i names class index i. Lines in synset form ("n01440764 tench, Tinca tinca")
// keep the first name after the id.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open labels file")
	}
	defer f.Close()

	labels, err := ParseLabels(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read labels from %s", path)
	}
	return labels, nil
}

// ParseLabels reads class names from r, one per line. Trailing blank lines are dropped.
func ParseLabels(r io.Reader) ([]string, error) {
	var labels []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		labels = append(labels, cleanLabel(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	for len(labels) > 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}
	return labels, nil
}

func cleanLabel(line string) string {
	line = strings.TrimSpace(line)
	if id, rest, ok := strings.Cut(line, " "); ok && isSynsetID(id) {
		line = rest
	}
	if name, _, ok := strings.Cut(line, ","); ok {
		line = name
	}
	return strings.TrimSpace(line)
}

// isSynsetID reports whether s looks like a WordNet id such as n01440764.
func isSynsetID(s string) bool {
	if len(s) != 9 || s[0] != 'n' {
		return false
	}
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
