package command

import "context"

// task представляет собой атомарную задачу для выполнения в пуле:
// команду и канал для ее результата.
type task struct {
	ctx    context.Context
	cmd    any
	result chan taskResult
}

type taskResult struct {
	value any
	err   error
}
