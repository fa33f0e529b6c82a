package protocol

import "strings"

// Tag is the discriminant carried in the "msg" field of every message.
type Tag string

const (
	TagIdentifyReq   Tag = "IDENTIFY_REQ"
	TagIdentifyRes   Tag = "IDENTIFY_RES"
	TagEnrollReq     Tag = "ENROLL_REQ"
	TagEnrollRes     Tag = "ENROLL_RES"
	TagLoginReq      Tag = "LOGIN_REQ"
	TagLoginRes      Tag = "LOGIN_RES"
	TagStartReq      Tag = "START_REQ"
	TagStartRes      Tag = "START_RES"
	TagDoorReq       Tag = "DOOR_REQ"
	TagDoorRes       Tag = "DOOR_RES"
	TagTrunkReq      Tag = "TRUNK_REQ"
	TagTrunkRes      Tag = "TRUNK_RES"
	TagAirReq        Tag = "AIR_REQ"
	TagAirRes        Tag = "AIR_RES"
	TagTempReq       Tag = "TEMP_REQ"
	TagTempRes       Tag = "TEMP_RES"
	TagHeatReq       Tag = "HEAT_REQ"
	TagHeatRes       Tag = "HEAT_RES"
	TagLightReq      Tag = "LIGHT_REQ"
	TagLightRes      Tag = "LIGHT_RES"
	TagParkReq       Tag = "PARK_REQ"
	TagParkRes       Tag = "PARK_RES"
	TagStopChargeReq Tag = "STOP_CHARGE_REQ"
	TagStopChargeRes Tag = "STOP_CHARGE_RES"
	TagStatusReq     Tag = "STATUS_REQ"
	TagStatusRes     Tag = "STATUS_RES"
)

// Tags lists every known tag in request/response pairs.
var Tags = []Tag{
	TagIdentifyReq, TagIdentifyRes,
	TagEnrollReq, TagEnrollRes,
	TagLoginReq, TagLoginRes,
	TagStartReq, TagStartRes,
	TagDoorReq, TagDoorRes,
	TagTrunkReq, TagTrunkRes,
	TagAirReq, TagAirRes,
	TagTempReq, TagTempRes,
	TagHeatReq, TagHeatRes,
	TagLightReq, TagLightRes,
	TagParkReq, TagParkRes,
	TagStopChargeReq, TagStopChargeRes,
	TagStatusReq, TagStatusRes,
}

// legacyNames are the spellings used by the deployed robot agent and console.
var legacyNames = map[Tag]string{
	TagIdentifyReq:   "CLIENT_IDENTIFY_REQ",
	TagIdentifyRes:   "CLIENT_IDENTIFY_RES",
	TagTempReq:       "CLI_REQ",
	TagTempRes:       "CLI_RES",
	TagParkReq:       "CONTROL_REQ",
	TagParkRes:       "CONTROL_RES",
	TagStopChargeReq: "STOP_CHARGING_REQ",
	TagStopChargeRes: "STOP_CHARGING_RES",
}

var (
	canonicalLookup = make(map[string]Tag, len(Tags))
	legacyLookup    = make(map[string]Tag, len(legacyNames)+1)
)

func init() {
	for _, t := range Tags {
		canonicalLookup[string(t)] = t
	}
	for t, name := range legacyNames {
		legacyLookup[name] = t
	}
	// the console enum has a bare CLIENT_IDENTIFY member
	legacyLookup["CLIENT_IDENTIFY"] = TagIdentifyReq
}

// ParseTag matches s case-insensitively against canonical and legacy spellings.
func ParseTag(s string) (Tag, bool) {
	t, _, ok := lookupTag(s)
	return t, ok
}

// lookupTag also reports whether s used a legacy spelling.
func lookupTag(s string) (Tag, bool, bool) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if t, ok := canonicalLookup[key]; ok {
		return t, false, true
	}
	if t, ok := legacyLookup[key]; ok {
		return t, true, true
	}
	return "", false, false
}

// LegacyName returns the deployed-peer spelling of t, or t itself when both agree.
func (t Tag) LegacyName() string {
	if name, ok := legacyNames[t]; ok {
		return name
	}
	return string(t)
}

func (t Tag) String() string { return string(t) }

func (t Tag) IsRequest() bool { return strings.HasSuffix(string(t), "_REQ") }

func (t Tag) IsResponse() bool { return strings.HasSuffix(string(t), "_RES") }

// IsLocal reports whether the relay answers t itself instead of forwarding it.
func (t Tag) IsLocal() bool {
	switch t {
	case TagIdentifyReq, TagIdentifyRes, TagEnrollReq, TagEnrollRes, TagLoginReq, TagLoginRes:
		return true
	}
	return false
}

// IsControl reports whether t is a control/status tag routed between operator and agent.
func (t Tag) IsControl() bool {
	_, known := canonicalLookup[string(t)]
	return known && !t.IsLocal()
}

// Response returns the response tag paired with a request tag.
func (t Tag) Response() (Tag, bool) {
	if !t.IsRequest() {
		return "", false
	}
	res, ok := canonicalLookup[strings.TrimSuffix(string(t), "_REQ")+"_RES"]
	return res, ok
}
