package observability

// Event is a lifecycle record emitted by the deployer and the callback worker,
// e.g. "statemachine.updated" or "task.failed".
type Event struct {
	Level  string
	Name   string
	Scope  Scope
	Fields map[string]any
}

// Record writes event to logger at its level, scoped to its identifiers.
// A nil logger drops the event.
func Record(logger StructuredLogger, event Event) {
	if logger == nil {
		return
	}

	scoped := logger
	if event.Scope.StateMachine != "" {
		scoped = scoped.WithStateMachine(event.Scope.StateMachine)
	}
	if event.Scope.ExecutionArn != "" {
		scoped = scoped.WithExecutionArn(event.Scope.ExecutionArn)
	}
	if event.Scope.State != "" {
		scoped = scoped.WithState(event.Scope.State)
	}
	if event.Scope.MessageID != "" {
		scoped = scoped.WithMessageID(event.Scope.MessageID)
	}
	if event.Scope.TraceID != "" {
		scoped = scoped.WithTraceID(event.Scope.TraceID)
	}

	fields := make(map[string]any, len(event.Fields)+1)
	for k, v := range event.Fields {
		fields[k] = v
	}
	fields["event"] = event.Name

	switch event.Level {
	case "error":
		scoped.Error(event.Name, fields)
	case "warn":
		scoped.Warn(event.Name, fields)
	case "debug":
		scoped.Debug(event.Name, fields)
	default:
		scoped.Info(event.Name, fields)
	}
}
