package logfields

import "go.uber.org/zap"

func Rule(val string) zap.Field {
	return zap.String("rule_name", val)
}

func Action(val string) zap.Field {
	return zap.String("action", val)
}

func Queue(val string) zap.Field {
	return zap.String("queue_name", val)
}

func EntryState(val string) zap.Field {
	return zap.String("queue_entry_state", val)
}
