package notification

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name    string
		channel Channel
		from    Status
		to      Status
		want    bool
	}{
		{"pending to sent", ChannelEmail, StatusPending, StatusSent, true},
		{"pending to failed", ChannelEmail, StatusPending, StatusFailed, true},
		{"scheduled to sent", ChannelEmail, StatusScheduled, StatusSent, true},
		{"scheduled to failed", ChannelEmail, StatusScheduled, StatusFailed, true},
		{"sent to failed via reconciliation", ChannelEmail, StatusSent, StatusFailed, true},
		{"failed refreshed by newer outcome", ChannelEmail, StatusFailed, StatusFailed, true},
		{"in-app sent to unread", ChannelInApp, StatusSent, StatusUnread, true},
		{"unread to read", ChannelInApp, StatusUnread, StatusRead, true},
		{"read back to unread", ChannelInApp, StatusRead, StatusUnread, true},
		{"unread to archived", ChannelInApp, StatusUnread, StatusArchived, true},
		{"read to archived", ChannelInApp, StatusRead, StatusArchived, true},

		{"no sent to scheduled", ChannelEmail, StatusSent, StatusScheduled, false},
		{"no pending to read", ChannelInApp, StatusPending, StatusRead, false},
		{"no archived resurrection", ChannelInApp, StatusArchived, StatusUnread, false},
		{"no failed to sent", ChannelEmail, StatusFailed, StatusSent, false},
		{"no sent direct to read", ChannelInApp, StatusSent, StatusRead, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransition(tc.channel, tc.from, tc.to); got != tc.want {
				t.Errorf("CanTransition(%s, %s, %s) = %v, want %v", tc.channel, tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestChannelStatusConsistency(t *testing.T) {
	// An in-app record must never reach FAILED.
	if CanTransition(ChannelInApp, StatusPending, StatusFailed) {
		t.Error("in-app record must not transition to FAILED")
	}
	if CanTransition(ChannelInApp, StatusSent, StatusFailed) {
		t.Error("in-app record must not be failed by reconciliation")
	}
	if StatusAllowedForChannel(ChannelInApp, StatusFailed) {
		t.Error("FAILED must not be allowed for the in-app channel")
	}

	// An email record must never reach the read/archive lifecycle.
	for _, s := range []Status{StatusUnread, StatusRead, StatusArchived} {
		if StatusAllowedForChannel(ChannelEmail, s) {
			t.Errorf("%s must not be allowed for the email channel", s)
		}
	}
	if CanTransition(ChannelEmail, StatusSent, StatusUnread) {
		t.Error("email record must not transition to UNREAD")
	}
}
