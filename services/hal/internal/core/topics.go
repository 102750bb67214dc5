package core

import "supermini-go/bus"

// Topic helpers; the layout is
// hal/cap/<domain>/<kind>/<name>/{info,status,value,event,control/<verb>}.

func topicConfigHAL() bus.Topic { return bus.T("config", "hal") }
func topicHALState() bus.Topic  { return bus.T("hal", "state") }

func capBase(domain, kind, name string) bus.Topic {
	return bus.T("hal", "cap", domain, kind, name)
}

func capInfo(domain, kind, name string) bus.Topic {
	return capBase(domain, kind, name).Append("info")
}

func capStatus(domain, kind, name string) bus.Topic {
	return capBase(domain, kind, name).Append("status")
}

func capValue(domain, kind, name string) bus.Topic {
	return capBase(domain, kind, name).Append("value")
}

func capEvent(domain, kind, name string) bus.Topic {
	return capBase(domain, kind, name).Append("event")
}

func capEventTagged(domain, kind, name, tag string) bus.Topic {
	return capEvent(domain, kind, name).Append(tag)
}

// CapControl is the request topic for one control verb; exported for
// callers composing requests.
func CapControl(domain, kind, name, verb string) bus.Topic {
	return capBase(domain, kind, name).Append("control", verb)
}

// hal/cap/+/+/+/control/+
func ctrlWildcard() bus.Topic {
	return bus.T("hal", "cap", "+", "+", "+", "control", "+")
}
