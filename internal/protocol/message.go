package protocol

// Message is one variant of the closed message set. Every variant embeds Base,
// so the tag and the optional reason travel with every frame.
type Message interface {
	Tag() Tag
	GetReason() string
	base() *Base
}

// Base holds the fields shared by every variant.
type Base struct {
	Msg    Tag    `json:"msg"`
	Reason string `json:"reason,omitempty"`
}

func (b *Base) base() *Base { return b }

func (b *Base) GetReason() string { return b.Reason }

// --- local handshake messages ---

type IdentifyReq struct {
	Base
	ClientName string `json:"client_name"`
}

type IdentifyRes struct {
	Base
	Identified bool `json:"identified"`
}

type EnrollReq struct {
	Base
	ID       string `json:"id"`
	Password string `json:"password"` // client-side digest, never the plaintext
	Username string `json:"username,omitempty"`
	CarModel string `json:"car_model,omitempty"`
}

type EnrollRes struct {
	Base
	Registered bool `json:"registered"`
}

type LoginReq struct {
	Base
	ID       string `json:"id"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"` // session token from an earlier LoginRes
}

type LoginRes struct {
	Base
	Logined bool   `json:"logined"`
	Token   string `json:"token,omitempty"`
}

// --- control messages, operator -> agent ---

type StartReq struct {
	Base
	Active bool `json:"active"`
}

type DoorReq struct {
	Base
	Door bool `json:"door"`
}

type TrunkReq struct {
	Base
	Trunk bool `json:"trunk"`
}

type AirReq struct {
	Base
	Air bool `json:"air"`
}

type TempReq struct {
	Base
	Temp int `json:"temp"`
}

type HeatReq struct {
	Base
	Heat bool `json:"heat"`
}

type LightReq struct {
	Base
	Light bool `json:"light"`
}

// ParkReq asks the agent to park (true) or pull out (false).
type ParkReq struct {
	Base
	Control bool `json:"control"`
}

type StopChargeReq struct {
	Base
	Stop bool `json:"stop"`
}

type StatusReq struct {
	Base
	CarStatus bool `json:"car_status"`
}

// --- control responses, agent -> operator ---

type StartRes struct {
	Base
	ActiveStatus bool `json:"active_status"`
}

type DoorRes struct {
	Base
	DoorStatus bool `json:"door_status"`
}

type TrunkRes struct {
	Base
	TrunkStatus bool `json:"trunk_status"`
}

type AirRes struct {
	Base
	AirStatus bool `json:"air_status"`
}

type TempRes struct {
	Base
	TempStatus bool `json:"temp_status"`
}

type HeatRes struct {
	Base
	HeatStatus bool `json:"heat_status"`
}

type LightRes struct {
	Base
	LightStatus bool `json:"light_status"`
}

// ParkRes reports parking progress. Parking and Driving are derived by the
// relay from the reason text before the response reaches the operator.
type ParkRes struct {
	Base
	ControlStatus bool `json:"control_status"`
	Parking       bool `json:"parking"`
	Driving       bool `json:"driving"`
}

type StopChargeRes struct {
	Base
	StopStatus bool `json:"stop_status"`
}

type StatusRes struct {
	Base
	Charging bool    `json:"charging"`
	Parking  bool    `json:"parking"`
	Driving  bool    `json:"driving"`
	Battery  float64 `json:"battery"` // 0.0 - 1.0
}

func (*IdentifyReq) Tag() Tag   { return TagIdentifyReq }
func (*IdentifyRes) Tag() Tag   { return TagIdentifyRes }
func (*EnrollReq) Tag() Tag     { return TagEnrollReq }
func (*EnrollRes) Tag() Tag     { return TagEnrollRes }
func (*LoginReq) Tag() Tag      { return TagLoginReq }
func (*LoginRes) Tag() Tag      { return TagLoginRes }
func (*StartReq) Tag() Tag      { return TagStartReq }
func (*StartRes) Tag() Tag      { return TagStartRes }
func (*DoorReq) Tag() Tag       { return TagDoorReq }
func (*DoorRes) Tag() Tag       { return TagDoorRes }
func (*TrunkReq) Tag() Tag      { return TagTrunkReq }
func (*TrunkRes) Tag() Tag      { return TagTrunkRes }
func (*AirReq) Tag() Tag        { return TagAirReq }
func (*AirRes) Tag() Tag        { return TagAirRes }
func (*TempReq) Tag() Tag       { return TagTempReq }
func (*TempRes) Tag() Tag       { return TagTempRes }
func (*HeatReq) Tag() Tag       { return TagHeatReq }
func (*HeatRes) Tag() Tag       { return TagHeatRes }
func (*LightReq) Tag() Tag      { return TagLightReq }
func (*LightRes) Tag() Tag      { return TagLightRes }
func (*ParkReq) Tag() Tag       { return TagParkReq }
func (*ParkRes) Tag() Tag       { return TagParkRes }
func (*StopChargeReq) Tag() Tag { return TagStopChargeReq }
func (*StopChargeRes) Tag() Tag { return TagStopChargeRes }
func (*StatusReq) Tag() Tag     { return TagStatusReq }
func (*StatusRes) Tag() Tag     { return TagStatusRes }

// New returns an empty message of the variant selected by t, with its tag set.
func New(t Tag) (Message, bool) {
	var m Message
	switch t {
	case TagIdentifyReq:
		m = &IdentifyReq{}
	case TagIdentifyRes:
		m = &IdentifyRes{}
	case TagEnrollReq:
		m = &EnrollReq{}
	case TagEnrollRes:
		m = &EnrollRes{}
	case TagLoginReq:
		m = &LoginReq{}
	case TagLoginRes:
		m = &LoginRes{}
	case TagStartReq:
		m = &StartReq{}
	case TagStartRes:
		m = &StartRes{}
	case TagDoorReq:
		m = &DoorReq{}
	case TagDoorRes:
		m = &DoorRes{}
	case TagTrunkReq:
		m = &TrunkReq{}
	case TagTrunkRes:
		m = &TrunkRes{}
	case TagAirReq:
		m = &AirReq{}
	case TagAirRes:
		m = &AirRes{}
	case TagTempReq:
		m = &TempReq{}
	case TagTempRes:
		m = &TempRes{}
	case TagHeatReq:
		m = &HeatReq{}
	case TagHeatRes:
		m = &HeatRes{}
	case TagLightReq:
		m = &LightReq{}
	case TagLightRes:
		m = &LightRes{}
	case TagParkReq:
		m = &ParkReq{}
	case TagParkRes:
		m = &ParkRes{}
	case TagStopChargeReq:
		m = &StopChargeReq{}
	case TagStopChargeRes:
		m = &StopChargeRes{}
	case TagStatusReq:
		m = &StatusReq{}
	case TagStatusRes:
		m = &StatusRes{}
	default:
		return nil, false
	}
	m.base().Msg = t
	return m, true
}

// Stamp sets m's wire tag from its variant, so literals built without Msg
// still encode correctly.
func Stamp(m Message) Message {
	m.base().Msg = m.Tag()
	return m
}
