package disgate

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNotificationValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		note    *Notification
		wantErr bool
	}{
		{
			name:    "nil notification",
			note:    nil,
			wantErr: true,
		},
		{
			name:    "missing kind",
			note:    &Notification{ID: "n1"},
			wantErr: true,
		},
		{
			name: "plain kind valid",
			note: &Notification{Kind: KindMessageCreate},
		},
		{
			name:    "raw requires payload",
			note:    &Notification{Kind: KindRaw},
			wantErr: true,
		},
		{
			name: "raw with payload valid",
			note: &Notification{Kind: KindRaw, Raw: &RawEvent{Name: "MESSAGE_CREATE", Data: json.RawMessage(`{}`)}},
		},
		{
			name:    "unknown requires payload",
			note:    &Notification{Kind: KindUnknown},
			wantErr: true,
		},
		{
			name:    "warning requires error",
			note:    &Notification{Kind: KindWarning},
			wantErr: true,
		},
		{
			name: "warning with error valid",
			note: &Notification{Kind: KindWarning, Err: errors.New("boom")},
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := testCase.note.Validate()
			if testCase.wantErr {
				if !errors.Is(err, ErrInvalidNotification) {
					t.Fatalf("error = %v, want invalid notification", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
