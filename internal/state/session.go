package state

import (
	"context"
	"errors"
)

// PublicSession is the self-service login held in the public slots.
type PublicSession struct {
	Email       string
	Token       string
	DisplayName string
}

// SavePublicSession overwrites the public slots. An admin "view as user"
// writes here too and replaces whatever player login was stored.
func (s *Store) SavePublicSession(ctx context.Context, sess PublicSession) error {
	if err := s.Set(ctx, KeyPublicToken, sess.Token); err != nil {
		return err
	}
	if err := s.Set(ctx, KeyPublicEmail, sess.Email); err != nil {
		return err
	}
	if sess.DisplayName == "" {
		return s.Delete(ctx, KeyDisplayName)
	}
	return s.Set(ctx, KeyDisplayName, sess.DisplayName)
}

// PublicSession returns the stored self-service login, if both the token
// and the email are present.
func (s *Store) PublicSession(ctx context.Context) (PublicSession, bool) {
	token, ok := s.Lookup(ctx, KeyPublicToken)
	if !ok {
		return PublicSession{}, false
	}
	email, ok := s.Lookup(ctx, KeyPublicEmail)
	if !ok {
		return PublicSession{}, false
	}
	name, _ := s.Lookup(ctx, KeyDisplayName)
	return PublicSession{Email: email, Token: token, DisplayName: name}, true
}

// ClearPublicSession removes the self-service login and the values cached
// for it.
func (s *Store) ClearPublicSession(ctx context.Context) error {
	var errs []error
	for _, k := range []Key{KeyPublicToken, KeyPublicEmail, KeyDisplayName, KeyDonuts, KeyTownSize, KeyTownLastModified} {
		errs = append(errs, s.Delete(ctx, k))
	}
	return errors.Join(errs...)
}

// ClearStaffSession removes the staff session cookie and the nucleus token.
func (s *Store) ClearStaffSession(ctx context.Context) error {
	return errors.Join(s.Delete(ctx, KeySession), s.Delete(ctx, KeyNucleusToken))
}
