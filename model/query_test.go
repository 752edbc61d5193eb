package model

import "testing"

func TestDecodeQueryOptions_fullyUnset(t *testing.T) {
	opts, err := DecodeQueryOptions(`{"top":-1,"skip":-1,"select":"null","expand":"null","filter":"null"}`)
	if err != nil {
		t.Fatalf("DecodeQueryOptions() error = %v", err)
	}
	if !opts.IsZero() {
		t.Errorf("options = %+v, want fully unset", opts)
	}
}

func TestDecodeQueryOptions_partial(t *testing.T) {
	opts, err := DecodeQueryOptions(`{"top":10,"skip":0,"select":"subject","expand":"null","filter":"null"}`)
	if err != nil {
		t.Fatalf("DecodeQueryOptions() error = %v", err)
	}
	if opts.Top != 10 {
		t.Errorf("Top = %d, want 10", opts.Top)
	}
	if opts.Skip != 0 {
		t.Errorf("Skip = %d, want 0", opts.Skip)
	}
	if opts.Select == nil || *opts.Select != "subject" {
		t.Errorf("Select = %v, want subject", opts.Select)
	}
	if opts.Expand != nil || opts.Filter != nil {
		t.Errorf("Expand = %v, Filter = %v, want both unset", opts.Expand, opts.Filter)
	}
}

func TestDecodeQueryOptions_lenientValues(t *testing.T) {
	opts, err := DecodeQueryOptions(`{"top":"5","skip":-1,"select":null,"expand":"Attachments","filter":"IsRead eq false"}`)
	if err != nil {
		t.Fatalf("DecodeQueryOptions() error = %v", err)
	}
	if opts.Top != 5 {
		t.Errorf("Top = %d, want 5", opts.Top)
	}
	if opts.Select != nil {
		t.Errorf("Select = %v, want unset", *opts.Select)
	}
	if opts.Filter == nil || *opts.Filter != "IsRead eq false" {
		t.Errorf("Filter = %v", opts.Filter)
	}
}

func TestDecodeQueryOptions_malformed(t *testing.T) {
	inputs := []string{
		``,
		`not json`,
		`[1,2,3]`,
		`"top"`,
		`null`,
		`{"skip":-1,"select":"null","expand":"null","filter":"null"}`,
		`{"top":"NaN","skip":-1,"select":"null","expand":"null","filter":"null"}`,
		`{"top":1e300,"skip":-1,"select":"null","expand":"null","filter":"null"}`,
		`{"top":1,"skip":-1,"select":7,"expand":"null","filter":"null"}`,
	}
	for _, in := range inputs {
		opts, err := DecodeQueryOptions(in)
		if CodeOf(err) != ErrQueryDecodeFailure {
			t.Errorf("DecodeQueryOptions(%q) code = %q, want %q", in, CodeOf(err), ErrQueryDecodeFailure)
		}
		if opts != DefaultQueryOptions() {
			t.Errorf("DecodeQueryOptions(%q) = %+v, want defaults", in, opts)
		}
	}
}

func TestDecodeQueryOptions_fractionalNumbersTruncate(t *testing.T) {
	cases := []struct {
		in        string
		top, skip int
	}{
		{`{"top":10.0,"skip":-1,"select":"null","expand":"null","filter":"null"}`, 10, -1},
		{`{"top":1.5,"skip":2.9,"select":"null","expand":"null","filter":"null"}`, 1, 2},
		{`{"top":"7.0","skip":-1.0,"select":"null","expand":"null","filter":"null"}`, 7, -1},
		{`{"top":1e1,"skip":0,"select":"null","expand":"null","filter":"null"}`, 10, 0},
	}
	for _, tc := range cases {
		opts, err := DecodeQueryOptions(tc.in)
		if err != nil {
			t.Errorf("DecodeQueryOptions(%s) error = %v", tc.in, err)
			continue
		}
		if opts.Top != tc.top || opts.Skip != tc.skip {
			t.Errorf("DecodeQueryOptions(%s) = top %d skip %d, want top %d skip %d", tc.in, opts.Top, opts.Skip, tc.top, tc.skip)
		}
	}
}
