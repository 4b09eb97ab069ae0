package voxform

import "testing"

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"intake", ModeIntake, false},
		{"sales", ModeSales, false},
		{"", "", true},
		{"billing", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestConfigForModesAreDisjoint(t *testing.T) {
	intake := ConfigFor(ModeIntake)
	sales := ConfigFor(ModeSales)

	if intake.ToolName == sales.ToolName {
		t.Error("modes share a tool name")
	}
	intakeNames := make(map[string]bool)
	for _, f := range intake.Fields {
		intakeNames[f.Name] = true
	}
	for _, f := range sales.Fields {
		if intakeNames[f.Name] {
			t.Errorf("field %q appears in both modes", f.Name)
		}
	}
}

func TestConfigForNewRecordLayout(t *testing.T) {
	cfg := ConfigFor(ModeIntake)
	rec := cfg.NewRecord()

	fields := rec.Fields()
	if len(fields) != len(cfg.Fields) {
		t.Fatalf("record has %d fields, want %d", len(fields), len(cfg.Fields))
	}
	for i, f := range fields {
		if f != cfg.Fields[i] {
			t.Errorf("field %d = %+v, want %+v", i, f, cfg.Fields[i])
		}
		if v := rec.Get(f.Name); v != "" {
			t.Errorf("field %q starts non-empty: %q", f.Name, v)
		}
	}
}

func TestConfigForHasInstructionAndGreeting(t *testing.T) {
	for _, mode := range []Mode{ModeIntake, ModeSales} {
		cfg := ConfigFor(mode)
		if cfg.Instruction == "" || cfg.Greeting == "" || cfg.ToolName == "" {
			t.Errorf("%s config incomplete: %+v", mode, cfg)
		}
	}
}
