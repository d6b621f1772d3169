package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	questsAssigned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arise",
		Subsystem: "quest",
		Name:      "assigned_total",
		Help:      "Daily quests created from the template pool.",
	})
	questsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arise",
		Subsystem: "quest",
		Name:      "completed_total",
		Help:      "Quest completions that actually awarded XP.",
	})
	xpGranted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arise",
		Subsystem: "progression",
		Name:      "xp_granted_total",
		Help:      "XP granted, labeled by source action.",
	}, []string{"action"})
	sessionsInvalidated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arise",
		Subsystem: "activity",
		Name:      "sessions_invalidated_total",
		Help:      "Timed sessions invalidated by the startup check.",
	})
	promptsShown = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arise",
		Subsystem: "notify",
		Name:      "prompts_shown_total",
		Help:      "Quest prompts surfaced by the notification gate.",
	})
	chatMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arise",
		Subsystem: "chat",
		Name:      "messages_total",
		Help:      "Chat messages broadcast to the global room.",
	})
)

func init() {
	prometheus.MustRegister(
		questsAssigned,
		questsCompleted,
		xpGranted,
		sessionsInvalidated,
		promptsShown,
		chatMessages,
	)
}

// RecordQuestAssigned counts a freshly created daily quest.
func RecordQuestAssigned() { questsAssigned.Inc() }

// RecordQuestCompleted counts an awarding quest completion.
func RecordQuestCompleted() { questsCompleted.Inc() }

// RecordXPGranted counts XP granted by a given action.
func RecordXPGranted(action string, amount int64) {
	xpGranted.WithLabelValues(action).Add(float64(amount))
}

// RecordSessionInvalidated counts a startup-check invalidation.
func RecordSessionInvalidated() { sessionsInvalidated.Inc() }

// RecordPromptShown counts a surfaced quest prompt.
func RecordPromptShown() { promptsShown.Inc() }

// RecordChatMessage counts a broadcast chat message.
func RecordChatMessage() { chatMessages.Inc() }
