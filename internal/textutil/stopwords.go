package textutil

// StopWords holds folded English and Portuguese function words.
var StopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "was": {}, "were": {}, "with": {}, "what": {}, "which": {},
	"o": {}, "os": {}, "um": {}, "uma": {}, "de": {}, "do": {}, "da": {}, "dos": {},
	"das": {}, "e": {}, "em": {}, "no": {}, "na": {}, "nos": {}, "nas": {}, "que": {}, "para": {},
	"por": {}, "com": {}, "se": {}, "ao": {}, "aos": {}, "sao": {}, "foi": {},
}

// RemoveStopWords filters tokens found in StopWords.
func RemoveStopWords(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := StopWords[token]; isStop {
			continue
		}
		result = append(result, token)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
