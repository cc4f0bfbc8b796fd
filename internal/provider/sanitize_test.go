package provider

import (
	"reflect"
	"testing"

	"github.com/John-Robertt/EXM/internal/domain"
)

func TestCleanTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`"Making Of"`, "Making Of"},
		{`"Making Of" (HD)`, "Making Of"},
		{"Storyboards (SD) (4:3)", "Storyboards"},
		{"Deleted  Scenes", "Deleted Scenes"},
		{`Anatomy of a Scene: The "Lost" Cut`, "Anatomy of a Scene The Lost Cut"},
		{"“引号标题”", "引号标题"},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := CleanTitle(c.in); got != c.want {
			t.Fatalf("CleanTitle(%q)：期望 %q，实际 %q", c.in, c.want, got)
		}
	}
}

func TestSanitize_DedupKeepsOrder(t *testing.T) {
	in := []domain.Extra{
		{Title: `"Making Of" (HD)`, DurationText: "5:26"},
		{Title: "Making Of", DurationText: "5:26"}, // 清洗后与首条同键
		{Title: "Making Of", DurationText: "5:27"}, // 时长不同 => 保留
		{Title: "   ", DurationText: "1:00"},       // 空标题丢弃
		{Title: "Storyboards", DurationText: "0:59"},
	}

	got := Sanitize(in)
	want := []domain.Extra{
		{Title: "Making Of", DurationText: "5:26"},
		{Title: "Making Of", DurationText: "5:27"},
		{Title: "Storyboards", DurationText: "0:59"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("期望 %+v，实际 %+v", want, got)
	}
}
