package loopmodel

import "testing"

func TestGlucoseSample_ValueMmolL(t *testing.T) {
	tests := []struct {
		name     string
		mgdl     float64
		expected float64
	}{
		{"100 mg/dL", 100, 5.55},
		{"180 mg/dL", 180, 9.99},
		{"70 mg/dL", 70, 3.89},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := GlucoseSample{MgDL: tt.mgdl}
			result := s.ValueMmolL()
			if result < tt.expected-0.1 || result > tt.expected+0.1 {
				t.Errorf("ValueMmolL() = %f, want approximately %f", result, tt.expected)
			}
		})
	}
}
