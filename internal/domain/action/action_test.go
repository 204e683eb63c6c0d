package action

import (
	"database/sql"
	"testing"
	"time"
)

func done() sql.NullTime {
	return sql.NullTime{Time: time.Now(), Valid: true}
}

func TestAllComplete(t *testing.T) {
	cases := []struct {
		name    string
		actions []Action
		want    bool
	}{
		{"empty set is not complete", nil, false},
		{"all done", []Action{{Type: "REVIEW_DATA", CompletedAt: done()}, {Type: "SIGN_COJ", CompletedAt: done()}}, true},
		{"one outstanding", []Action{{Type: "REVIEW_DATA", CompletedAt: done()}, {Type: "SIGN_COJ"}}, false},
		{"none done", []Action{{Type: "REVIEW_DATA"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AllComplete(tc.actions); got != tc.want {
				t.Errorf("AllComplete = %v, want %v", got, tc.want)
			}
		})
	}
}
