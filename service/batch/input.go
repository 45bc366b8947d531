package batch

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// StartSignatureNotFoundError is returned when a resume signature is not in
// the input list. Fatal at startup: the run aborts before any work begins.
type StartSignatureNotFoundError struct {
	Signature string
}

func (e *StartSignatureNotFoundError) Error() string {
	return fmt.Sprintf("start signature not found in input list: %s", e.Signature)
}

// LoadSignatures reads the ordered signature list: one per line, first
// comma-delimited field significant, blank lines skipped. A leading header
// line (anything that does not parse as a signature) is skipped too.
func LoadSignatures(r io.Reader) ([]string, error) {
	var out []string
	first := true

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		field := strings.TrimSpace(strings.SplitN(line, ",", 2)[0])
		if field == "" {
			continue
		}
		if first {
			first = false
			if _, err := solana.SignatureFromBase58(field); err != nil {
				continue // header line
			}
		}
		out = append(out, field)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read signature list: %w", err)
	}
	return out, nil
}

// LoadSignaturesFile reads a signature list from a file.
func LoadSignaturesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open signature list: %w", err)
	}
	defer f.Close()
	return LoadSignatures(f)
}

// Resume narrows the signature list to the resume point: either a located
// signature (which takes precedence) or a fixed skip count. The returned
// slice starts at the resume signature inclusive.
func Resume(ids []string, skip int, startSignature string) ([]string, error) {
	if startSignature != "" {
		for i, id := range ids {
			if id == startSignature {
				return ids[i:], nil
			}
		}
		return nil, &StartSignatureNotFoundError{Signature: startSignature}
	}

	if skip <= 0 {
		return ids, nil
	}
	if skip >= len(ids) {
		return nil, nil
	}
	return ids[skip:], nil
}
