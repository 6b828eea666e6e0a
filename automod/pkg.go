package automod

import (
	"github.com/moderation-ai/modai/automod/countstore"
	"github.com/moderation-ai/modai/automod/engine"
)

type Engine = engine.Engine
type Executor = engine.Executor
type Policy = engine.Policy
type TrackedPost = engine.TrackedPost
type TrackEvent = engine.TrackEvent
type PassSummary = engine.PassSummary

type Comment = engine.Comment
type Decision = engine.Decision
type Outcome = engine.Outcome
type Signal = engine.Signal

type Notifier = engine.Notifier
type SlackNotifier = engine.SlackNotifier

type CommentSource = engine.CommentSource
type ModerationSink = engine.ModerationSink

var (
	ActionApprove = engine.ActionApprove
	ActionFlag    = engine.ActionFlag
	ActionHide    = engine.ActionHide
	ActionDelete  = engine.ActionDelete

	DefaultPolicy  = engine.DefaultPolicy
	HideOnlyPolicy = engine.HideOnlyPolicy

	PeriodTotal = countstore.PeriodTotal
	PeriodDay   = countstore.PeriodDay
	PeriodHour  = countstore.PeriodHour
)
