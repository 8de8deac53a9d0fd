package automation

import (
	"context"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

type conditionFunc func(ctx context.Context, cond Condition, event TaskEvent, env Env) (bool, error)

type condition struct {
	Descriptor
	check conditionFunc
}

func (c condition) Check(ctx context.Context, cond Condition, event TaskEvent, env Env) (bool, error) {
	return c.check(ctx, cond, event, env)
}

func builtinConditions() []ConditionCapability {
	return []ConditionCapability{
		condition{Descriptor{"titleContains", "Title Contains", "Task title contains the text (case-insensitive)"}, titleContains},
		condition{Descriptor{"projectIs", "Project Is", "Task belongs to the project with this title"}, projectIs},
		condition{Descriptor{"hasTag", "Has Tag", "Task carries the tag with this title"}, hasTag},
		condition{Descriptor{"weekdayIs", "Weekday Is", "Today is one of the comma-separated days (e.g. mon,wed,friday)"}, weekdayIs},
		condition{Descriptor{"titleMatches", "Title Matches", "Task title matches the glob pattern (case-insensitive)"}, titleMatches},
	}
}

func titleContains(_ context.Context, cond Condition, event TaskEvent, _ Env) (bool, error) {
	if event.Task == nil || cond.Value == "" {
		return false, nil
	}
	return strings.Contains(strings.ToLower(event.Task.Title), strings.ToLower(cond.Value)), nil
}

func titleMatches(_ context.Context, cond Condition, event TaskEvent, _ Env) (bool, error) {
	if event.Task == nil || cond.Value == "" {
		return false, nil
	}
	ok, err := doublestar.Match(strings.ToLower(cond.Value), strings.ToLower(event.Task.Title))
	if err != nil {
		// bad pattern never matches
		return false, nil
	}
	return ok, nil
}

func projectIs(ctx context.Context, cond Condition, event TaskEvent, env Env) (bool, error) {
	if event.Task == nil || event.Task.ProjectID == "" || env.Cache == nil {
		return false, nil
	}
	project, found, err := env.Cache.ProjectByID(ctx, event.Task.ProjectID)
	if err != nil || !found {
		return false, err
	}
	return project.Title == cond.Value, nil
}

func hasTag(ctx context.Context, cond Condition, event TaskEvent, env Env) (bool, error) {
	if event.Task == nil || env.Cache == nil {
		return false, nil
	}
	tag, found, err := env.Cache.TagByTitle(ctx, cond.Value)
	if err != nil || !found {
		return false, err
	}
	return event.Task.HasTag(tag.ID), nil
}

func weekdayIs(_ context.Context, cond Condition, _ TaskEvent, env Env) (bool, error) {
	today := strings.ToLower(env.now().Weekday().String())
	for _, token := range strings.Split(cond.Value, ",") {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == today || (len(token) == 3 && strings.HasPrefix(today, token)) {
			return true, nil
		}
	}
	return false, nil
}
