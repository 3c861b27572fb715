package dialog

import (
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Confirmation holds phrases that count as "yes".
var Confirmation = []string{
	"是", "好的", "行", "我愿意", "算我一个",
	"绝对没问题", "当然", "现在就", "走吧", "我会到的",
	"听起来不错", "我可以参加", "我准备好了", "就这么定了",
	"一定", "我在路上", "我会来",
}

// Reject holds phrases that count as "no".
var Reject = []string{
	"不", "现在不行", "不能", "不参加", "赶不上",
	"不可能", "抱歉", "我有安排", "不去",
	"很遗憾不能", "我做不到", "遗憾地说不",
	"不行", "不用了", "我很忙", "我需要拒绝",
}

// normalize folds full-width forms (including the ideographic space) to
// their narrow equivalents and composes the result.
func normalize(s string) string {
	return norm.NFC.String(width.Fold.String(s))
}

// ContainsPhraseInOrder reports whether any phrase matches response.
//
// Both are split on single spaces. A phrase matches when each of its words
// equals, ignoring case, some response token after the token matched by
// the previous word. Words need not be adjacent.
func ContainsPhraseInOrder(response string, phrases []string) bool {
	if response == "" {
		return false
	}
	tokens := strings.Split(normalize(response), " ")
	for _, phrase := range phrases {
		if inOrder(tokens, strings.Split(normalize(phrase), " ")) {
			return true
		}
	}
	return false
}

func inOrder(tokens, words []string) bool {
	rest := tokens
	for _, w := range words {
		idx := -1
		for i, tok := range rest {
			if strings.EqualFold(tok, w) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return false
		}
		rest = rest[idx+1:]
	}
	return true
}

// Reply classifies a listened response.
type Reply int

const (
	ReplyNone Reply = iota // nothing recognised
	ReplyReject
	ReplyConfirm
	ReplyOther
)

func (r Reply) String() string {
	switch r {
	case ReplyReject:
		return "reject"
	case ReplyConfirm:
		return "confirm"
	case ReplyOther:
		return "other"
	default:
		return "none"
	}
}

// Classify sorts a listened response. Reject is checked before confirm.
func Classify(response string, ok bool) Reply {
	switch {
	case !ok || strings.TrimSpace(response) == "":
		return ReplyNone
	case ContainsPhraseInOrder(response, Reject):
		return ReplyReject
	case ContainsPhraseInOrder(response, Confirmation):
		return ReplyConfirm
	default:
		return ReplyOther
	}
}
