package disgate

import "testing"

func TestInterestSetMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		interest InterestSet
		note     *Notification
		want     bool
	}{
		{
			name:     "empty set matches any kind",
			interest: InterestSet{},
			note:     &Notification{Kind: KindMessageCreate},
			want:     true,
		},
		{
			name:     "listed kind matches",
			interest: InterestSet{Kinds: []Kind{KindMessageCreate, KindMessageDelete}},
			note:     &Notification{Kind: KindMessageDelete},
			want:     true,
		},
		{
			name:     "unlisted kind rejected",
			interest: InterestSet{Kinds: []Kind{KindMessageCreate}},
			note:     &Notification{Kind: KindPresenceUpdate},
			want:     false,
		},
		{
			name:     "nil notification rejected",
			interest: InterestSet{},
			note:     nil,
			want:     false,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if got := testCase.interest.Matches(testCase.note); got != testCase.want {
				t.Fatalf("matches = %t, want %t", got, testCase.want)
			}
		})
	}
}
