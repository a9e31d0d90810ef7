package digest

import (
	"testing"
	"time"
)

func TestNextRunAfter(t *testing.T) {
	// 2026-08-31 is a Monday.
	monday := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	friday := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	saturday := time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		now          time.Time
		hour, min    int
		weekdaysOnly bool
		want         time.Time
	}{
		{
			name: "before today's slot runs today",
			now:  monday.Add(9 * time.Hour),
			hour: 17, min: 0, weekdaysOnly: true,
			want: monday.Add(17 * time.Hour),
		},
		{
			name: "after today's slot runs tomorrow",
			now:  monday.Add(18 * time.Hour),
			hour: 17, min: 0, weekdaysOnly: true,
			want: monday.AddDate(0, 0, 1).Add(17 * time.Hour),
		},
		{
			name: "exactly at the slot runs tomorrow",
			now:  monday.Add(17 * time.Hour),
			hour: 17, min: 0, weekdaysOnly: false,
			want: monday.AddDate(0, 0, 1).Add(17 * time.Hour),
		},
		{
			name: "friday evening skips to monday",
			now:  friday.Add(18 * time.Hour),
			hour: 17, min: 0, weekdaysOnly: true,
			want: friday.AddDate(0, 0, 3).Add(17 * time.Hour),
		},
		{
			name: "saturday skips to monday",
			now:  saturday.Add(9 * time.Hour),
			hour: 17, min: 0, weekdaysOnly: true,
			want: saturday.AddDate(0, 0, 2).Add(17 * time.Hour),
		},
		{
			name: "weekends allowed when daily",
			now:  friday.Add(18 * time.Hour),
			hour: 17, min: 0, weekdaysOnly: false,
			want: friday.AddDate(0, 0, 1).Add(17 * time.Hour),
		},
		{
			name: "minutes respected",
			now:  monday.Add(9 * time.Hour),
			hour: 9, min: 30, weekdaysOnly: true,
			want: monday.Add(9*time.Hour + 30*time.Minute),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextRunAfter(tt.now, tt.hour, tt.min, tt.weekdaysOnly)
			if !got.Equal(tt.want) {
				t.Errorf("nextRunAfter(%v) = %v, want %v", tt.now, got, tt.want)
			}
			if !got.After(tt.now) {
				t.Errorf("nextRunAfter returned %v, not after %v", got, tt.now)
			}
		})
	}
}
