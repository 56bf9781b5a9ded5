package layout

import "strings"

var chinesePunctuation = map[rune]rune{
	',':  '，',
	'.':  '。',
	':':  '：',
	';':  '；',
	'?':  '？',
	'!':  '！',
	'\'': '’',
	'"':  '”',
	'(':  '（',
	')':  '）',
	'[':  '【',
	']':  '】',
}

// ToChinesePunctuation replaces ASCII punctuation with its full-width Chinese form
func ToChinesePunctuation(text string) string {
	return strings.Map(func(r rune) rune {
		if cn, ok := chinesePunctuation[r]; ok {
			return cn
		}
		return r
	}, text)
}
