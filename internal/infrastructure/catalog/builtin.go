package catalog

import (
	"github.com/civic-hub/civic-sim-hub/internal/domain/simulation"
)

// BuiltinDefinitions возвращает встроенные симуляции. Они всегда доступны
// даже без каталога на диске и используются наборами тестов как эталон.
func BuiltinDefinitions() []*simulation.SimulationDefinition {
	return []*simulation.SimulationDefinition{
		localBudget(),
		cityPetition(),
	}
}

// localBudget - участие в распределении бюджета района.
func localBudget() *simulation.SimulationDefinition {
	return &simulation.SimulationDefinition{
		ID:          "local-budget",
		Title:       "Бюджет района",
		Description: "Район получил средства на благоустройство. Решите, как их распределить.",
		Steps: []simulation.ScenarioStep{
			{
				Number:      1,
				Description: "Как определить приоритеты расходов?",
				Choices: []simulation.Choice{
					{
						ID: "survey", Text: "Провести опрос жителей",
						PointsDelta: 10, NextStep: 2,
						Feedback: "Жители увидели, что их мнение учитывается.",
					},
					{
						ID: "decide-alone", Text: "Решить в узком кругу",
						PointsDelta: -5, NextStep: 2,
						Feedback: "Без опроса легко не заметить реальные потребности района.",
					},
				},
			},
			{
				Number:      2,
				Description: "Опрос показал два запроса: детская площадка и парковка. Что выбрать?",
				Choices: []simulation.Choice{
					{
						ID: "playground", Text: "Детская площадка",
						PointsDelta: 10, NextStep: 3,
						Feedback: "Площадкой пользуются больше семей, чем парковкой.",
					},
					{
						ID: "parking", Text: "Парковка",
						PointsDelta: 5, NextStep: 3,
						Feedback: "Парковка решает проблему части жителей.",
					},
				},
			},
			{
				Number:      3,
				Description: "Работы завершены. Как отчитаться о расходах?",
				Choices: []simulation.Choice{
					{
						ID: "open-report", Text: "Опубликовать открытый отчёт",
						PointsDelta: 20, IsComplete: true,
						Feedback: "Открытая отчётность укрепляет доверие к бюджетному процессу.",
					},
					{
						ID: "no-report", Text: "Отчёт не публиковать",
						PointsDelta: -10, IsComplete: true,
						Feedback: "Закрытость рождает подозрения даже при честных расходах.",
					},
				},
			},
		},
	}
}

// cityPetition - продвижение городской петиции.
func cityPetition() *simulation.SimulationDefinition {
	return &simulation.SimulationDefinition{
		ID:          "city-petition",
		Title:       "Городская петиция",
		Description: "Вы хотите добиться ремонта пешеходного перехода у школы.",
		Steps: []simulation.ScenarioStep{
			{
				Number:      1,
				Description: "С чего начать сбор поддержки?",
				Choices: []simulation.Choice{
					{
						ID: "signatures", Text: "Собрать подписи во дворах",
						PointsDelta: 10, NextStep: 2,
						Feedback: "Личный сбор подписей даёт проверяемую поддержку.",
					},
					{
						ID: "online-only", Text: "Ограничиться постом в соцсетях",
						PointsDelta: 0, NextStep: 3,
						Feedback: "Пост заметили, но без подписей вес петиции ниже.",
					},
				},
			},
			{
				Number:      2,
				Description: "Подписи собраны. Что дальше?",
				Choices: []simulation.Choice{
					{
						ID: "verify", Text: "Проверить и оформить подписные листы",
						PointsDelta: 15, NextStep: 3,
						Feedback: "Оформленные листы не отклонят по формальным причинам.",
					},
					{
						ID: "submit-raw", Text: "Сдать как есть",
						PointsDelta: -5, NextStep: 3,
						Feedback: "Часть подписей отклонили из-за ошибок оформления.",
					},
				},
			},
			{
				Number:      3,
				Description: "Петицию рассматривают на публичных слушаниях. Пойдёте?",
				Choices: []simulation.Choice{
					{
						ID: "attend", Text: "Выступить на слушаниях",
						PointsDelta: 20, IsComplete: true,
						Feedback: "Личное выступление отвечает на вопросы комиссии сразу.",
					},
					{
						ID: "skip", Text: "Не приходить",
						PointsDelta: 0, IsComplete: true,
						Feedback: "Без автора вопросы комиссии остались без ответа.",
					},
				},
			},
		},
	}
}
