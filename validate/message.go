// Package validate 提供纯函数的消息/房间号校验与清洗能力。
// 不产生副作用；错误以描述性字符串返回，不 panic 不 error。
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Result 校验结果
type Result struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}

// MessageOptions 消息校验选项（零值字段使用默认值）
type MessageOptions struct {
	MinLength             int      // 默认 1（按 trim 后长度）
	MaxLength             int      // 默认 2000（按原始长度）
	MaxConsecutiveChars   int      // 默认 10，连续相同字符上限
	AllowDoubleBlankLines bool     // 是否允许连续空行
	BlockedWords          []string // 屏蔽词（大小写不敏感的子串匹配）
}

func (o *MessageOptions) withDefaults() MessageOptions {
	out := MessageOptions{MinLength: 1, MaxLength: 2000, MaxConsecutiveChars: 10}
	if o == nil {
		return out
	}
	if o.MinLength > 0 {
		out.MinLength = o.MinLength
	}
	if o.MaxLength > 0 {
		out.MaxLength = o.MaxLength
	}
	if o.MaxConsecutiveChars > 0 {
		out.MaxConsecutiveChars = o.MaxConsecutiveChars
	}
	out.AllowDoubleBlankLines = o.AllowDoubleBlankLines
	out.BlockedWords = o.BlockedWords
	return out
}

var (
	doubleBlankLineRe = regexp.MustCompile(`\n[ \t]*\n[ \t]*\n`)
	scriptBlockRe     = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	htmlTagRe         = regexp.MustCompile(`<[^>]*>`)
	horizontalSpaceRe = regexp.MustCompile(`[ \t\r\f\v]+`)
	manyNewlinesRe    = regexp.MustCompile(`\n{3,}`)
)

// ValidateMessage 校验未清洗的消息内容。
// 规则见各 error 分支；垃圾消息启发式：短消息内单词重复 >5 次、
// 大写字母比例 >0.7、标点比例 >0.3。
func ValidateMessage(content string, opts *MessageOptions) Result {
	cfg := opts.withDefaults()
	errs := make([]string, 0, 2)

	trimmed := strings.TrimSpace(content)
	if utf8.RuneCountInString(trimmed) < cfg.MinLength {
		errs = append(errs, "消息内容不能为空")
		return Result{IsValid: false, Errors: errs}
	}
	if utf8.RuneCountInString(content) > cfg.MaxLength {
		errs = append(errs, fmt.Sprintf("消息长度不能超过 %d 个字符", cfg.MaxLength))
	}

	if !cfg.AllowDoubleBlankLines && doubleBlankLineRe.MatchString(content) {
		errs = append(errs, "消息不允许包含连续空行")
	}

	if run := longestRun(content); run > cfg.MaxConsecutiveChars {
		errs = append(errs, fmt.Sprintf("同一字符不能连续出现超过 %d 次", cfg.MaxConsecutiveChars))
	}

	lower := strings.ToLower(content)
	for _, w := range cfg.BlockedWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if strings.Contains(lower, w) {
			errs = append(errs, "消息包含被屏蔽的词汇")
			break
		}
	}

	if isSpam(content) {
		errs = append(errs, "消息疑似垃圾内容")
	}

	return Result{IsValid: len(errs) == 0, Errors: errs}
}

// SanitizeMessage 清洗消息内容：去 NUL 字节、剥离 <script> 与其它标签、
// 压缩水平空白为单个空格、压缩 3+ 连续换行为 2、Trim。
// 幂等：对已清洗内容再次调用结果不变。入库前必须调用；清洗后为空视为拒绝。
func SanitizeMessage(content string) string {
	s := strings.ReplaceAll(content, "\x00", "")
	s = scriptBlockRe.ReplaceAllString(s, "")
	s = htmlTagRe.ReplaceAllString(s, "")
	s = horizontalSpaceRe.ReplaceAllString(s, " ")
	s = manyNewlinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// longestRun 返回最长的连续相同字符长度
func longestRun(s string) int {
	var last rune = -1
	run, best := 0, 0
	for _, r := range s {
		if r == last {
			run++
		} else {
			last = r
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

// isSpam 垃圾消息启发式：
// - 消息在 50 词以内且任一单词出现超过 5 次
// - 长度 >10 且大写字母占字母比例 > 0.7
// - 长度 >10 且标点字符占比 > 0.3
func isSpam(content string) bool {
	tokens := strings.Fields(content)
	if len(tokens) > 0 && len(tokens) < 50 {
		counts := make(map[string]int, len(tokens))
		for _, t := range tokens {
			counts[strings.ToLower(t)]++
			if counts[strings.ToLower(t)] > 5 {
				return true
			}
		}
	}

	runes := []rune(content)
	if len(runes) > 10 {
		var letters, uppers, puncts int
		for _, r := range runes {
			if unicode.IsLetter(r) {
				letters++
				if unicode.IsUpper(r) {
					uppers++
				}
			}
			if unicode.IsPunct(r) || unicode.IsSymbol(r) {
				puncts++
			}
		}
		if letters > 0 && float64(uppers)/float64(letters) > 0.7 {
			return true
		}
		if float64(puncts)/float64(len(runes)) > 0.3 {
			return true
		}
	}
	return false
}
