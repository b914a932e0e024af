package dashboard

import (
	"context"
	"strings"
)

// SaveView is a user's save rendered as text, with a find cursor that
// wraps around at either end.
type SaveView struct {
	Username string
	Legacy   bool
	Text     string

	query   string
	matches []int
	cur     int
}

// Match is one occurrence of the search term. Line and Column are
// 1-based; Offset is the byte offset into the text.
type Match struct {
	Offset int
	Length int
	Line   int
	Column int
	// Index is the position of this match among Total matches.
	Index int
	Total int
}

// LoadSave fetches the save of username for viewing.
func (c *Controller) LoadSave(ctx context.Context, username string, legacy bool) (*SaveView, error) {
	text, err := c.api.GetUserSave(ctx, username, legacy)
	if err != nil {
		return nil, err
	}
	return &SaveView{Username: username, Legacy: legacy, Text: text}, nil
}

// Search finds every occurrence of query and selects the first one. It
// reports false when query is empty or does not occur.
func (v *SaveView) Search(query string) (Match, bool) {
	v.query, v.matches, v.cur = query, nil, 0
	if query == "" {
		return Match{}, false
	}
	for from := 0; ; {
		i := strings.Index(v.Text[from:], query)
		if i < 0 {
			break
		}
		v.matches = append(v.matches, from+i)
		from += i + len(query)
	}
	return v.current()
}

// Matches returns how many occurrences the last search found.
func (v *SaveView) Matches() int { return len(v.matches) }

// Next selects the following match, wrapping to the first after the last.
func (v *SaveView) Next() (Match, bool) { return v.Seek(v.cur + 1) }

// Prev selects the preceding match, wrapping to the last before the first.
func (v *SaveView) Prev() (Match, bool) { return v.Seek(v.cur - 1) }

// Seek selects match i, taken modulo the number of matches.
func (v *SaveView) Seek(i int) (Match, bool) {
	n := len(v.matches)
	if n == 0 {
		return Match{}, false
	}
	v.cur = ((i % n) + n) % n
	return v.current()
}

func (v *SaveView) current() (Match, bool) {
	if len(v.matches) == 0 {
		return Match{}, false
	}
	off := v.matches[v.cur]
	before := v.Text[:off]
	return Match{
		Offset: off,
		Length: len(v.query),
		Line:   strings.Count(before, "\n") + 1,
		Column: off - strings.LastIndex(before, "\n"),
		Index:  v.cur,
		Total:  len(v.matches),
	}, true
}
