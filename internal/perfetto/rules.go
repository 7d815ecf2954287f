package perfetto

import "fmt"

// durationRule rewrites an instant record into one side of a duration pair.
type durationRule struct {
	phase Phase
	name  func(args Args) string
}

func fixedName(name string) func(Args) string {
	return func(Args) string { return name }
}

func isrName(args Args) string {
	if n, ok := args.Get("isr_number"); ok {
		return fmt.Sprintf("ISR_%v", n)
	}
	return "ISR_unknown"
}

// durationRules is keyed by exact, case-sensitive event name.
//
// Queue and delay events only open a slice: the trace carries no event that
// would close them, so no End is synthesized.
var durationRules = map[string]durationRule{
	"isr_enter":         {phase: PhaseBegin, name: isrName},
	"isr_exit":          {phase: PhaseEnd, name: isrName},
	"task_switched_in":  {phase: PhaseBegin, name: fixedName("Task_Switch")},
	"task_switched_out": {phase: PhaseEnd, name: fixedName("Task_Switch")},
	"queue_send":        {phase: PhaseBegin, name: fixedName("Queue_Send")},
	"queue_receive":     {phase: PhaseBegin, name: fixedName("Queue_Receive")},
	"vTaskDelay":        {phase: PhaseBegin, name: fixedName("Task_Delay")},
	"task_delay_until":  {phase: PhaseBegin, name: fixedName("Task_Delay")},
}

// applyDurationRule remaps rec in place when eventName has a rule.
func applyDurationRule(eventName string, rec *Record) {
	rule, ok := durationRules[eventName]
	if !ok {
		return
	}
	rec.Phase = rule.phase
	rec.Name = rule.name(rec.Args)
}
