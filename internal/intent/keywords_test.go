package intent

import "testing"

func TestMatcher_SpokenVariantsHitCourriers(t *testing.T) {
	t.Parallel()
	m := NewMatcher()
	sections := SectionsForRole("president")

	// Transcription renders the mail section a dozen different ways; all of
	// them must land on the same section.
	for _, phrase := range []string{"courriers", "courrier", "courier", "couriers"} {
		sec, conf, ok := m.Match(phrase, sections)
		if !ok {
			t.Errorf("%q: no match", phrase)
			continue
		}
		if sec.ID != "courriers" {
			t.Errorf("%q: matched %q, want courriers", phrase, sec.ID)
		}
		if conf <= 0 {
			t.Errorf("%q: confidence = %f, want > 0", phrase, conf)
		}
	}
}

func TestMatcher_KeywordsReachSections(t *testing.T) {
	t.Parallel()
	m := NewMatcher()
	sections := SectionsForRole("president")

	cases := []struct {
		phrase string
		wantID string
	}{
		{"tableau de bord", "dashboard"},
		{"accueil", "dashboard"},
		{"documents", "documents"},
		{"budget", "budget"},
		{"décrets", "decrets"},
		{"conseil des ministres", "conseil-ministres"},
	}
	for _, tc := range cases {
		sec, _, ok := m.Match(tc.phrase, sections)
		if !ok {
			t.Errorf("%q: no match", tc.phrase)
			continue
		}
		if sec.ID != tc.wantID {
			t.Errorf("%q: matched %q, want %q", tc.phrase, sec.ID, tc.wantID)
		}
	}
}

func TestMatcher_NoMatchForUnrelatedSpeech(t *testing.T) {
	t.Parallel()
	m := NewMatcher()
	sections := SectionsForRole("president")

	for _, phrase := range []string{"", "   ", "xyzzy"} {
		if sec, _, ok := m.Match(phrase, sections); ok {
			t.Errorf("%q: unexpected match %q", phrase, sec.ID)
		}
	}
}

func TestMatcher_EmptySections(t *testing.T) {
	t.Parallel()
	m := NewMatcher()
	if _, _, ok := m.Match("courrier", nil); ok {
		t.Fatal("match against empty section list")
	}
}

func TestSectionsForRole_FallsBackToPresident(t *testing.T) {
	t.Parallel()
	got := SectionsForRole("unknown-role")
	want := SectionsForRole("president")
	if len(got) != len(want) {
		t.Fatalf("fallback sections = %d, want %d", len(got), len(want))
	}

	admin := SectionsForRole("admin")
	if len(admin) == 0 {
		t.Fatal("admin sections empty")
	}
}
