package gateway

import (
	"fmt"
	"strings"
	"time"
)

// buildPreamble renders the system turn that opens every conversation.
// It survives history trimming, so everything the assistant must never
// forget lives here.
func buildPreamble(displayName string, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("Você é a Pangeia, uma assistente pessoal de tarefas que conversa por mensagens.\n\n")

	if strings.TrimSpace(displayName) != "" {
		fmt.Fprintf(&sb, "Você está falando com %s. Trate a pessoa pelo primeiro nome.\n", displayName)
	}
	fmt.Fprintf(&sb, "Agora são %s.\n\n", now.Format("02/01/2006 15:04"))

	sb.WriteString(`Regras:
- Responda sempre em português brasileiro, em tom caloroso e direto.
- Respostas curtas: isto é um chat, não um e-mail.
- Para qualquer ação sobre tarefas, lembretes ou progresso, use as funções disponíveis. Nunca invente o conteúdo da lista.
- As tarefas são numeradas a partir de 1 na ordem em que aparecem na lista.
- Use no máximo um emoji por resposta. O 😊 só cabe em saudações.
- Nunca escreva o nome de uma função ou sintaxe de chamada no texto da resposta.`)

	return sb.String()
}
