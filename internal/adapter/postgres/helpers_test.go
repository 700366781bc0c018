package postgres

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/Strob0t/Herald/internal/domain"
)

func TestCheckID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{uuid.NewString(), false},
		{"6F9619FF-8B86-D011-B42D-00C04FC964FF", false},
		{"", true},
		{"not-a-uuid", true},
		{"ev-1", true},
		{"1; DROP TABLE events", true},
	}
	for _, tt := range tests {
		err := checkID(tt.id, "event")
		if !tt.wantErr {
			if err != nil {
				t.Errorf("checkID(%q) = %v", tt.id, err)
			}
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("checkID(%q) = %v, want ErrNotFound", tt.id, err)
		}
	}
}
