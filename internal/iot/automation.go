package iot

import (
	"fmt"
	"log"
	"time"

	"homehub/internal/database"
	"homehub/internal/models"
)

// Automation trigger types
const (
	TriggerTime   = "time"
	TriggerSensor = "sensor"
	TriggerManual = "manual"
)

// Engine evaluates automation rules. Run Check once per minute; time
// triggers fire when the wall clock matches their HH:MM and sensor
// triggers fire when the watched value crosses the condition.
type Engine struct {
	db         *database.Database
	controller *Controller
}

func NewEngine(db *database.Database, controller *Controller) *Engine {
	return &Engine{db: db, controller: controller}
}

// Check evaluates all enabled rules against the given time.
func (e *Engine) Check(now time.Time) {
	rules, err := e.db.GetEnabledRules()
	if err != nil {
		log.Printf("[Automation] Failed to load rules: %v", err)
		return
	}

	for i := range rules {
		rule := &rules[i]
		fire, err := e.shouldFire(rule, now)
		if err != nil {
			log.Printf("[Automation] Rule %s: %v", rule.RuleID, err)
			continue
		}
		if !fire {
			continue
		}
		if err := e.Execute(rule); err != nil {
			log.Printf("[Automation] Rule %s execution failed: %v", rule.RuleID, err)
		}
	}
}

func (e *Engine) shouldFire(rule *models.AutomationRule, now time.Time) (bool, error) {
	// One firing per minute at most, so a matching condition does not
	// retrigger on every check
	if rule.LastExecuted != nil && now.Sub(*rule.LastExecuted) < time.Minute {
		return false, nil
	}

	conditions := rule.ConditionMap()

	switch rule.TriggerType {
	case TriggerTime:
		want, _ := conditions["time"].(string)
		if want == "" {
			return false, fmt.Errorf("time trigger missing time condition")
		}
		return now.Format("15:04") == want, nil

	case TriggerSensor:
		deviceID, _ := conditions["device_id"].(string)
		operator, _ := conditions["operator"].(string)
		threshold, ok := floatParam(conditions, "value")
		if deviceID == "" || operator == "" || !ok {
			return false, fmt.Errorf("sensor trigger missing device_id, operator or value")
		}

		device, err := e.db.GetDeviceByDeviceID(deviceID)
		if err != nil {
			return false, err
		}
		if device == nil {
			return false, fmt.Errorf("sensor device %s not found", deviceID)
		}

		current, ok := floatParam(device.StateMap(), "value")
		if !ok {
			return false, nil
		}

		switch operator {
		case "above":
			return current > threshold, nil
		case "below":
			return current < threshold, nil
		case "equals":
			return current == threshold, nil
		default:
			return false, fmt.Errorf("unknown sensor operator %q", operator)
		}

	case TriggerManual:
		return false, nil

	default:
		return false, fmt.Errorf("unknown trigger type %q", rule.TriggerType)
	}
}

// Execute runs a rule's actions in order and records the execution. Action
// failures are logged but do not stop the remaining actions.
func (e *Engine) Execute(rule *models.AutomationRule) error {
	actions := rule.ActionList()
	if len(actions) == 0 {
		return fmt.Errorf("rule %s has no actions", rule.RuleID)
	}

	log.Printf("[Automation] Executing rule %s (%s)", rule.RuleID, rule.Name)

	var failed int
	for _, action := range actions {
		if _, err := e.controller.Control(action.DeviceID, action.Action, action.Parameters); err != nil {
			log.Printf("[Automation] Rule %s: action %s on %s failed: %v",
				rule.RuleID, action.Action, action.DeviceID, err)
			failed++
		}
	}

	if err := e.db.MarkRuleExecuted(rule.ID); err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}

	if failed == len(actions) {
		return fmt.Errorf("all %d actions failed", failed)
	}
	return nil
}
