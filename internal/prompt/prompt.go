// Package prompt asks the operator for confirmation and secrets before
// destructive or authenticated actions.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// ErrNotConfirmed is returned when the operator declines a confirmation.
var ErrNotConfirmed = errors.New("cancelled")

// Question describes a confirmation. When Typed is set, the operator must
// type that exact word instead of answering yes/no.
type Question struct {
	Label string
	Typed string
}

// Confirmer asks a Question and reports the answer.
type Confirmer interface {
	Confirm(q Question) (bool, error)
}

// Require asks q and maps a declined answer to ErrNotConfirmed.
func Require(c Confirmer, q Question) error {
	if c == nil {
		return ErrNotConfirmed
	}
	ok, err := c.Confirm(q)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotConfirmed
	}
	return nil
}

// Always answers every question with its own value. Always(true) backs the
// --yes flag.
type Always bool

func (a Always) Confirm(Question) (bool, error) { return bool(a), nil }

// Terminal asks on the controlling terminal with promptui.
type Terminal struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
}

func (t Terminal) Confirm(q Question) (bool, error) {
	if q.Typed != "" {
		p := promptui.Prompt{
			Label:  fmt.Sprintf("%s Type %s to confirm", q.Label, q.Typed),
			Stdin:  t.Stdin,
			Stdout: t.Stdout,
		}
		answer, err := p.Run()
		if err != nil {
			return false, promptErr(err)
		}
		return strings.TrimSpace(answer) == q.Typed, nil
	}

	p := promptui.Prompt{
		Label:     q.Label,
		IsConfirm: true,
		Stdin:     t.Stdin,
		Stdout:    t.Stdout,
	}
	if _, err := p.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, promptErr(err)
	}
	return true, nil
}

// promptErr turns Ctrl-C and Ctrl-D into a plain "not confirmed".
func promptErr(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return ErrNotConfirmed
	}
	return err
}

// Ask displays a prompt and returns the user's input, or def when the user
// presses Enter without typing anything.
func Ask(label, def string) (string, error) {
	p := promptui.Prompt{
		Label:     label,
		Default:   def,
		AllowEdit: true,
	}
	result, err := p.Run()
	if err != nil {
		return "", promptErr(err)
	}
	return strings.TrimSpace(result), nil
}

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// Password prints label to w and reads a secret from stdin without echo.
func Password(w io.Writer, label string) (string, error) {
	if _, err := fmt.Fprintf(w, "%s: ", label); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}
