package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/refine/internal/models"
)

// ErrNoInput is returned when input ends before a judgment is read.
var ErrNoInput = errors.New("no judgment input")

// Prompt asks the user whether each result is relevant. It implements feedback.JudgmentSource.
type Prompt struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompt creates a prompt reading answers from in and writing questions to out.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out}
}

// Judge shows the result and reads y or n, asking again on anything else.
func (p *Prompt) Judge(ctx context.Context, rank int, result *models.Result) (bool, error) {
	if rank == 1 {
		fmt.Fprintln(p.out, "\n==================== Relevance Feedback ====================")
	}
	fmt.Fprintf(p.out, "Result %d\n", rank)
	fmt.Fprintf(p.out, "Title: %s\n", result.Title)
	fmt.Fprintf(p.out, "URL:   %s\n", result.URL)
	fmt.Fprintf(p.out, "Summary: %s\n", result.Snippet)
	fmt.Fprint(p.out, "Relevant (y/n)? ")
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		line, err := p.in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y":
			return true, nil
		case "n":
			return false, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, ErrNoInput
			}
			return false, fmt.Errorf("failed to read judgment: %w", err)
		}
		fmt.Fprint(p.out, "Please enter 'y' or 'n': ")
	}
}
