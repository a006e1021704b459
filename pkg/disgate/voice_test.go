package disgate

import "testing"

func TestVoiceStatePatchScopeAndLeft(t *testing.T) {
	t.Parallel()

	channelID := "c1"
	empty := ""

	tests := []struct {
		name      string
		patch     *VoiceStatePatch
		wantScope string
		wantLeft  bool
	}{
		{
			name:      "guild connection",
			patch:     &VoiceStatePatch{GuildID: "g1", ChannelID: &channelID, UserID: "u1"},
			wantScope: "g1",
			wantLeft:  false,
		},
		{
			name:      "direct call scopes by channel",
			patch:     &VoiceStatePatch{ChannelID: &channelID, UserID: "u1"},
			wantScope: "c1",
			wantLeft:  false,
		},
		{
			name:      "nil channel means left",
			patch:     &VoiceStatePatch{GuildID: "g1", UserID: "u1"},
			wantScope: "g1",
			wantLeft:  true,
		},
		{
			name:      "empty channel means left",
			patch:     &VoiceStatePatch{GuildID: "g1", ChannelID: &empty, UserID: "u1"},
			wantScope: "g1",
			wantLeft:  true,
		},
		{
			name:      "no guild and no channel has no scope",
			patch:     &VoiceStatePatch{UserID: "u1"},
			wantScope: "",
			wantLeft:  true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if got := testCase.patch.Scope(); got != testCase.wantScope {
				t.Fatalf("scope = %q, want %q", got, testCase.wantScope)
			}
			if got := testCase.patch.Left(); got != testCase.wantLeft {
				t.Fatalf("left = %t, want %t", got, testCase.wantLeft)
			}
		})
	}
}
