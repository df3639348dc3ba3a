package functions

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// Names of every registered tool, in the order they are advertised.
func Names() []string {
	names := make([]string, len(Definitions))
	for i, d := range Definitions {
		names[i] = d.Function.Name
	}
	return names
}

// Definitions are the tool schemas advertised to the model.
var Definitions = []openai.ChatCompletionToolParam{
	{
		Function: shared.FunctionDefinitionParam{
			Name:        "view_tasks",
			Description: openai.String("Lista as tarefas do usuário, opcionalmente filtradas por status."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"filter_status": map[string]any{
						"type":        "string",
						"enum":        []string{"all", "pending", "in_progress", "completed"},
						"description": "Filtro de status. Use 'all' para todas.",
					},
				},
			},
		},
	},
	{
		Function: shared.FunctionDefinitionParam{
			Name:        "create_task",
			Description: openai.String("Cria uma nova tarefa para o usuário."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "Título curto da tarefa.",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Detalhes opcionais.",
					},
					"priority": map[string]any{
						"type": "string",
						"enum": []string{"low", "medium", "high", "urgent"},
					},
				},
				"required": []string{"title"},
			},
		},
	},
	{
		Function: shared.FunctionDefinitionParam{
			Name:        "mark_done",
			Description: openai.String("Marca tarefas como concluídas pelos números exibidos na lista."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"task_numbers": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "integer"},
						"description": "Posições das tarefas na lista, começando em 1.",
					},
				},
				"required": []string{"task_numbers"},
			},
		},
	},
	{
		Function: shared.FunctionDefinitionParam{
			Name:        "mark_progress",
			Description: openai.String("Marca tarefas como em andamento pelos números exibidos na lista."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"task_numbers": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "integer"},
					},
				},
				"required": []string{"task_numbers"},
			},
		},
	},
	{
		Function: shared.FunctionDefinitionParam{
			Name:        "view_progress",
			Description: openai.String("Mostra o resumo de progresso das tarefas do usuário."),
			Parameters: shared.FunctionParameters{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	},
	{
		Function: shared.FunctionDefinitionParam{
			Name:        "get_help",
			Description: openai.String("Explica o que o assistente sabe fazer."),
			Parameters: shared.FunctionParameters{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	},
	{
		Function: shared.FunctionDefinitionParam{
			Name:        "set_reminder",
			Description: openai.String("Agenda um lembrete para o usuário."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{
						"type":        "string",
						"description": "O que lembrar.",
					},
					"when": map[string]any{
						"type":        "string",
						"description": "Quando lembrar, em linguagem natural (ex.: 'amanhã às 9h', 'em 2 horas').",
					},
				},
				"required": []string{"message", "when"},
			},
		},
	},
	{
		Function: shared.FunctionDefinitionParam{
			Name:        "list_reminders",
			Description: openai.String("Lista os lembretes pendentes do usuário."),
			Parameters: shared.FunctionParameters{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	},
	{
		Function: shared.FunctionDefinitionParam{
			Name:        "create_category",
			Description: openai.String("Cria uma categoria para organizar tarefas."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{"type": "string"},
				},
				"required": []string{"name"},
			},
		},
	},
	{
		Function: shared.FunctionDefinitionParam{
			Name:        "assign_category",
			Description: openai.String("Associa uma tarefa a uma categoria pelo número da tarefa."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"task_number": map[string]any{"type": "integer"},
					"category":    map[string]any{"type": "string"},
				},
				"required": []string{"task_number", "category"},
			},
		},
	},
	{
		Function: shared.FunctionDefinitionParam{
			Name:        "sync_notion",
			Description: openai.String("Sincroniza as tarefas do usuário com o Notion."),
			Parameters: shared.FunctionParameters{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	},
}
