package conversion

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"fragmenter/internal/worker"
)

// LinePrompter asks overwrite questions on a line-oriented terminal.
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLinePrompter reads answers from in and writes questions to out.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out}
}

// ConfirmOverwrite returns true only for an explicit yes. End of input is a
// no. Canceling ctx abandons the pending read and returns ctx.Err().
func (p *LinePrompter) ConfirmOverwrite(ctx context.Context, item worker.Item, outputPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := fmt.Fprintf(p.out, "Fragment %s already exists for %s. Overwrite? [y/N]: ", outputPath, item.Name); err != nil {
		return false, err
	}

	answers := make(chan answer, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		answers <- answer{line: line, err: err}
	}()

	var got answer
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case got = <-answers:
	}
	if got.err != nil && (got.err != io.EOF || got.line == "") {
		if got.err == io.EOF {
			return false, nil
		}
		return false, got.err
	}
	switch strings.ToLower(strings.TrimSpace(got.line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

type answer struct {
	line string
	err  error
}
