package i18n

var english = map[string]string{
	KeyRuleUseOnlyContext:  "Answer using only the information in the provided context. Do not rely on prior knowledge.",
	KeyRuleCiteClaims:      "Cite every claim with the number of its source in square brackets, for example [1] or [2].",
	KeyRuleAdmitUnknown:    "If the context does not contain the answer, say that you do not know.",
	KeyRuleOutputFormat:    "Reply exactly in the format requested at the end of the message.",
	KeyContextHeader:       "Context:",
	KeyContextEmpty:        "(no context available)",
	KeyReferencesHeader:    "Sources:",
	KeyQuestionHeader:      "Question:",
	KeyFormatHeader:        "Reply format:",
	KeyAnswerPlaceholder:   "<your answer with [n] citations>",
	KeyCitationPlaceholder: "[1], [2]",
	KeyNoContext:           "I could not find any relevant information to answer this question.",
}

var portuguese = map[string]string{
	KeyRuleUseOnlyContext:  "Responda usando apenas as informações do contexto fornecido. Não use conhecimento prévio.",
	KeyRuleCiteClaims:      "Cite cada afirmação com o número da fonte entre colchetes, por exemplo [1] ou [2].",
	KeyRuleAdmitUnknown:    "Se o contexto não contiver a resposta, diga que não sabe.",
	KeyRuleOutputFormat:    "Responda exatamente no formato pedido ao final da mensagem.",
	KeyContextHeader:       "Contexto:",
	KeyContextEmpty:        "(nenhum contexto disponível)",
	KeyReferencesHeader:    "Fontes:",
	KeyQuestionHeader:      "Pergunta:",
	KeyFormatHeader:        "Formato da resposta:",
	KeyAnswerPlaceholder:   "<sua resposta com citações [n]>",
	KeyCitationPlaceholder: "[1], [2]",
	KeyNoContext:           "Não encontrei informações relevantes para responder a esta pergunta.",
}
