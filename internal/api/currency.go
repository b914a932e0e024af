package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// MaxDonuts is the largest donut balance the panel will write.
const MaxDonuts = 100000

// ClampDonuts parses the leading integer of input and clamps it to
// [0, MaxDonuts]. Input with no leading integer yields 0, so "42abc" is 42
// and "abc" is 0.
func ClampDonuts(input string) int {
	s := strings.TrimSpace(input)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}

	n, digits := 0, 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		digits++
		if n <= MaxDonuts {
			n = n*10 + int(r-'0')
		}
	}
	switch {
	case digits == 0, neg:
		return 0
	case n > MaxDonuts:
		return MaxDonuts
	}
	return n
}

// AdminGetCurrency reads the donut balance of target.
func (c *Client) AdminGetCurrency(ctx context.Context, target string) (*Currency, error) {
	if target == "" {
		return nil, Invalid("target_user", "is required")
	}
	var out Currency
	if err := c.do(ctx, "get currency", http.MethodGet, "/api/admin/get_currency", url.Values{"target_user": {target}}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminSaveCurrency writes the donut balance of target.
func (c *Client) AdminSaveCurrency(ctx context.Context, target string, donuts int) error {
	if target == "" {
		return Invalid("target_user", "is required")
	}
	if donuts < 0 || donuts > MaxDonuts {
		return Invalid("donuts", "out of range")
	}
	return c.do(ctx, "save currency", http.MethodPost, "/api/admin/save_currency", nil,
		map[string]any{"target_user": target, "donuts": donuts}, nil)
}
