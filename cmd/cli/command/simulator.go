package command

import (
	"sync"

	"github.com/ryoozeen/RCS/internal/protocol"
)

// vehicle is the simulated agent's state. answer returns the frames the real
// robot agent sends for each request, progress reports first.
type vehicle struct {
	mu       sync.Mutex
	active   bool
	door     bool
	trunk    bool
	air      bool
	heat     bool
	light    bool
	temp     int
	parked   bool
	charging bool
	battery  float64
}

func newVehicle(battery float64) *vehicle {
	return &vehicle{temp: 22, charging: true, battery: battery}
}

func (v *vehicle) answer(msg protocol.Message) []protocol.Message {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch m := msg.(type) {
	case *protocol.StartReq:
		v.active = m.Active
		return one(&protocol.StartRes{ActiveStatus: v.active})
	case *protocol.DoorReq:
		v.door = m.Door
		return one(&protocol.DoorRes{DoorStatus: v.door})
	case *protocol.TrunkReq:
		v.trunk = m.Trunk
		return one(&protocol.TrunkRes{TrunkStatus: v.trunk})
	case *protocol.AirReq:
		v.air = m.Air
		return one(&protocol.AirRes{AirStatus: v.air})
	case *protocol.TempReq:
		v.temp = m.Temp
		return one(&protocol.TempRes{TempStatus: true})
	case *protocol.HeatReq:
		v.heat = m.Heat
		return one(&protocol.HeatRes{HeatStatus: v.heat})
	case *protocol.LightReq:
		v.light = m.Light
		return one(&protocol.LightRes{LightStatus: v.light})
	case *protocol.ParkReq:
		progress := "출차중..."
		if m.Control {
			progress = "주차중..."
		}
		v.parked = m.Control
		return []protocol.Message{
			&protocol.ParkRes{Base: protocol.Base{Reason: progress}},
			&protocol.ParkRes{ControlStatus: true},
		}
	case *protocol.StopChargeReq:
		if m.Stop {
			v.charging = false
		}
		return one(&protocol.StopChargeRes{StopStatus: !v.charging})
	case *protocol.StatusReq:
		return one(&protocol.StatusRes{
			Charging: v.charging,
			Parking:  v.parked,
			Driving:  v.active && !v.parked,
			Battery:  v.battery,
		})
	}
	return nil
}

func one(m protocol.Message) []protocol.Message {
	return []protocol.Message{m}
}
