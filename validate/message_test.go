package validate

import (
	"strings"
	"testing"
)

func TestValidateMessage_Valid(t *testing.T) {
	r := ValidateMessage("hello world", nil)
	if !r.IsValid {
		t.Fatalf("expected valid, errors=%v", r.Errors)
	}
	if len(r.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", r.Errors)
	}
}

func TestValidateMessage_EmptyAfterTrim(t *testing.T) {
	for _, content := range []string{"", "   ", "\n\t  \n"} {
		r := ValidateMessage(content, nil)
		if r.IsValid {
			t.Fatalf("content %q expected invalid", content)
		}
		if len(r.Errors) != 1 || r.Errors[0] != "消息内容不能为空" {
			t.Fatalf("content %q unexpected errors: %v", content, r.Errors)
		}
	}
}

func TestValidateMessage_TooLong(t *testing.T) {
	r := ValidateMessage(strings.Repeat("啊呀", 1001), nil)
	if r.IsValid {
		t.Fatal("expected invalid")
	}
}

func TestValidateMessage_MaxLengthCountsRunes(t *testing.T) {
	// 2000 个多字节字符，字节数远超 2000 但 rune 数正好达标
	r := ValidateMessage(strings.Repeat("好啊", 1000), nil)
	if !r.IsValid {
		t.Fatalf("2000 runes should be valid, errors=%v", r.Errors)
	}
}

func TestValidateMessage_DoubleBlankLines(t *testing.T) {
	content := "first\n\n\nsecond"
	r := ValidateMessage(content, nil)
	if r.IsValid {
		t.Fatal("expected invalid for consecutive blank lines")
	}

	r = ValidateMessage(content, &MessageOptions{AllowDoubleBlankLines: true})
	if !r.IsValid {
		t.Fatalf("expected valid when allowed, errors=%v", r.Errors)
	}
}

func TestValidateMessage_ConsecutiveChars(t *testing.T) {
	r := ValidateMessage("w"+strings.Repeat("o", 11)+"w", nil)
	if r.IsValid {
		t.Fatal("expected invalid for 11 consecutive chars")
	}
	r = ValidateMessage("w"+strings.Repeat("o", 10)+"w", nil)
	if !r.IsValid {
		t.Fatalf("10 consecutive chars should pass, errors=%v", r.Errors)
	}
}

func TestValidateMessage_BlockedWordsCaseInsensitive(t *testing.T) {
	opts := &MessageOptions{BlockedWords: []string{"SPAM"}}
	r := ValidateMessage("this is spam indeed", opts)
	if r.IsValid {
		t.Fatal("expected blocked word to invalidate")
	}
	found := false
	for _, e := range r.Errors {
		if e == "消息包含被屏蔽的词汇" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing blocked word error, got %v", r.Errors)
	}
}

func TestValidateMessage_SpamRepeatedWord(t *testing.T) {
	r := ValidateMessage(strings.Repeat("buy ", 6)+"now", nil)
	if r.IsValid {
		t.Fatal("expected spam heuristic to fire on repeated word")
	}
}

func TestValidateMessage_SpamAllCaps(t *testing.T) {
	r := ValidateMessage("THIS IS VERY IMPORTANT STUFF", nil)
	if r.IsValid {
		t.Fatal("expected spam heuristic to fire on caps ratio")
	}
}

func TestValidateMessage_SpamPunctuation(t *testing.T) {
	r := ValidateMessage("hi!!!???!!!???!!", nil)
	if r.IsValid {
		t.Fatal("expected spam heuristic to fire on punctuation ratio")
	}
}

func TestValidateMessage_CollectsMultipleErrors(t *testing.T) {
	content := "a\n\n\nb" + strings.Repeat("x", 15)
	r := ValidateMessage(content, nil)
	if r.IsValid {
		t.Fatal("expected invalid")
	}
	if len(r.Errors) < 2 {
		t.Fatalf("expected multiple errors, got %v", r.Errors)
	}
}

func TestSanitizeMessage(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"script stripped", `before<script type="text/javascript">alert(1)</script>after`, "beforeafter"},
		{"script multiline", "a<script>\nevil()\n</script>b", "ab"},
		{"tags stripped", "<b>bold</b> and <i>italic</i>", "bold and italic"},
		{"nul removed", "a\x00b", "ab"},
		{"spaces collapsed", "a  \t  b", "a b"},
		{"newlines capped", "a\n\n\n\n\nb", "a\n\nb"},
		{"trimmed", "  hi  ", "hi"},
		{"only tags becomes empty", "<br><hr>", ""},
	}
	for _, c := range cases {
		if got := SanitizeMessage(c.in); got != c.want {
			t.Errorf("%s: SanitizeMessage(%q) = %q, want %q", c.name, c.in, got, c.want)
		}
	}
}

func TestSanitizeMessage_Idempotent(t *testing.T) {
	inputs := []string{
		"  <b>hello</b>   world\n\n\n\nbye  ",
		"plain text",
		"a\x00<script>x</script>b",
	}
	for _, in := range inputs {
		once := SanitizeMessage(in)
		twice := SanitizeMessage(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}
