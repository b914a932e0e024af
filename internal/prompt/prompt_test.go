package prompt

import (
	"bytes"
	"errors"
	"testing"
)

type scripted struct {
	answer bool
	err    error
	asked  []Question
}

func (s *scripted) Confirm(q Question) (bool, error) {
	s.asked = append(s.asked, q)
	return s.answer, s.err
}

func TestRequire(t *testing.T) {
	if err := Require(Always(true), Question{Label: "go?"}); err != nil {
		t.Fatalf("Always(true): %v", err)
	}
	if err := Require(Always(false), Question{Label: "go?"}); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("Always(false): got %v, want ErrNotConfirmed", err)
	}
	if err := Require(nil, Question{Label: "go?"}); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("nil confirmer: got %v, want ErrNotConfirmed", err)
	}

	boom := errors.New("tty gone")
	s := &scripted{err: boom}
	if err := Require(s, Question{Label: "x", Typed: "DELETE"}); !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
	if len(s.asked) != 1 || s.asked[0].Typed != "DELETE" {
		t.Errorf("question not forwarded: %+v", s.asked)
	}
}

func TestPasswordUsesSeam(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(int) ([]byte, error) { return []byte("hunter2"), nil }

	var out bytes.Buffer
	pw, err := Password(&out, "Password")
	if err != nil {
		t.Fatalf("Password: %v", err)
	}
	if pw != "hunter2" {
		t.Errorf("pw = %q", pw)
	}
	if out.String() != "Password: \n" {
		t.Errorf("prompt output = %q", out.String())
	}
}

func TestPasswordError(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(int) ([]byte, error) { return nil, errors.New("not a terminal") }

	if _, err := Password(&bytes.Buffer{}, "Password"); err == nil {
		t.Fatal("expected error")
	}
}
