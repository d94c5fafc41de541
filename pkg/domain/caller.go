package domain

// CallerKind is the closed set of identities a turn can originate from.
type CallerKind int

const (
	// CallerUser is an ordinary channel user talking to the bot.
	CallerUser CallerKind = iota
	// CallerChannel is the channel service itself (e.g. conversation updates).
	CallerChannel
	// CallerSkill is a parent bot invoking this bot as a skill.
	CallerSkill
)

func (k CallerKind) String() string {
	switch k {
	case CallerUser:
		return "user"
	case CallerChannel:
		return "channel"
	case CallerSkill:
		return "skill"
	default:
		return "unknown"
	}
}

// Caller describes who initiated the turn. AppID is set for Channel and Skill
// callers; ParentAppID only for skills.
type Caller struct {
	Kind        CallerKind
	AppID       string
	ParentAppID string
}

// UserCaller returns the default caller identity.
func UserCaller() Caller {
	return Caller{Kind: CallerUser}
}

// SkillCaller returns a caller identity for a skill invocation from parentAppID.
func SkillCaller(appID, parentAppID string) Caller {
	return Caller{Kind: CallerSkill, AppID: appID, ParentAppID: parentAppID}
}

// IsSkill reports whether the turn was started by a parent bot.
func (c Caller) IsSkill() bool {
	return c.Kind == CallerSkill
}
