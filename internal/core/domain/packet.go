package domain

import (
	"encoding/binary"
	"math"
	"time"
)

// Simulator interface wire format constants.
const (
	// PacketSize is the fixed datagram size in bytes.
	PacketSize = 0x128

	// PacketMagic is the little-endian magic at offset 0 ("G7S0").
	PacketMagic = 0x47375330
)

// Sentinel values used by the wire format for "not available".
const (
	noLap     = 0xFFFF
	noLapTime = 0xFFFFFFFF
	noGear    = 0xF
)

// Packet is one decoded simulator-interface datagram.
//
// Integer fields that the wire format marks with a sentinel value are
// reported as -1 when not available (lap counters, lap times, grid
// positions, gears).
type Packet struct {
	PacketID   int64
	ReceivedAt time.Time
	CarID      int64

	LapCount    int   // -1 outside a race
	LapsInRace  int   // -1 outside a race
	BestLapTime int64 // milliseconds, -1 if none
	LastLapTime int64 // milliseconds, -1 if none

	Position        Vector
	Velocity        Vector
	AngularVelocity Vector
	Rotation        Rotation

	RoadPlane    Vector
	RoadDistance float64

	Wheels Wheels
	Flags  Flags

	Orientation      float64
	BodyHeight       float64
	EngineRPM        float64
	GasLevel         float64
	GasCapacity      float64
	CarSpeed         float64 // meters per second
	TurboBoost       float64
	OilPressure      float64
	OilTemperature   float64
	WaterTemperature float64
	TimeOfDay        int64

	StartPosition int // -1 when not racing
	CarsInRace    int // -1 when not racing

	RPMAlert    Bounds
	CarMaxSpeed float64

	TransmissionMaxSpeed float64
	Throttle             uint8 // raw 0..255
	Brake                uint8 // raw 0..255
	Clutch               float64
	ClutchEngagement     float64
	ClutchGearboxRPM     float64
	CurrentGear          int // -1 when unknown
	SuggestedGear        int // -1 when none suggested
	GearRatios           []float64
}

// Vector is a 3D vector.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Rotation holds the car body rotation.
type Rotation struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// Wheel holds per-wheel readings.
type Wheel struct {
	SuspensionHeight float64 `json:"suspension_height"`
	Radius           float64 `json:"radius"` // meters
	RPS              float64 `json:"rps"`    // revolutions per second
	GroundSpeed      float64 `json:"ground_speed"`
	Temperature      float64 `json:"temperature"`
}

// Wheels holds the four wheels.
type Wheels struct {
	FrontLeft  Wheel `json:"front_left"`
	FrontRight Wheel `json:"front_right"`
	RearLeft   Wheel `json:"rear_left"`
	RearRight  Wheel `json:"rear_right"`
}

// Bounds is an inclusive numeric range.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Flags is the 16-bit status word at offset 0x8E.
type Flags struct {
	CarOnTrack            bool
	Paused                bool
	LoadingOrProcessing   bool
	InGear                bool
	HasTurbo              bool
	RevLimiterAlertActive bool
	HandBrakeActive       bool
	LightsActive          bool
	HighBeamsActive       bool
	LowBeamsActive        bool
	ASMActive             bool
	TCSActive             bool
}

// ParsePacket decodes a decrypted simulator-interface datagram.
func ParsePacket(b []byte, receivedAt time.Time) (*Packet, error) {
	if len(b) < PacketSize {
		return nil, ErrFeedShortPacket
	}
	if binary.LittleEndian.Uint32(b[0:4]) != PacketMagic {
		return nil, ErrFeedBadMagic
	}

	p := &Packet{
		PacketID:   int64(binary.LittleEndian.Uint32(b[112:116])),
		ReceivedAt: receivedAt,
		CarID:      int64(binary.LittleEndian.Uint32(b[292:296])),

		LapCount:    sentinel16(binary.LittleEndian.Uint16(b[116:118]), noLap),
		LapsInRace:  sentinel16(binary.LittleEndian.Uint16(b[118:120]), noLap),
		BestLapTime: sentinel32(binary.LittleEndian.Uint32(b[120:124]), noLapTime),
		LastLapTime: sentinel32(binary.LittleEndian.Uint32(b[124:128]), noLapTime),

		Position:        vectorAt(b, 4),
		Velocity:        vectorAt(b, 16),
		Rotation:        Rotation{Pitch: f32(b, 28), Yaw: f32(b, 32), Roll: f32(b, 36)},
		Orientation:     f32(b, 40),
		AngularVelocity: vectorAt(b, 44),

		BodyHeight:       f32(b, 56),
		EngineRPM:        f32(b, 60),
		GasLevel:         f32(b, 68),
		GasCapacity:      f32(b, 72),
		CarSpeed:         f32(b, 76),
		TurboBoost:       f32(b, 80),
		OilPressure:      f32(b, 84),
		WaterTemperature: f32(b, 88),
		OilTemperature:   f32(b, 92),
		TimeOfDay:        int64(binary.LittleEndian.Uint32(b[128:132])),

		RPMAlert: Bounds{
			Min: float64(binary.LittleEndian.Uint16(b[136:138])),
			Max: float64(binary.LittleEndian.Uint16(b[138:140])),
		},
		CarMaxSpeed: float64(binary.LittleEndian.Uint16(b[140:142])),

		Flags: parseFlags(binary.LittleEndian.Uint16(b[142:144])),

		RoadPlane:    vectorAt(b, 148),
		RoadDistance: f32(b, 160),

		Wheels: Wheels{
			FrontLeft:  wheelAt(b, 196, 180, 164, 96),
			FrontRight: wheelAt(b, 200, 184, 168, 100),
			RearLeft:   wheelAt(b, 204, 188, 172, 104),
			RearRight:  wheelAt(b, 208, 192, 176, 108),
		},

		Throttle:             b[145],
		Brake:                b[146],
		Clutch:               f32(b, 244),
		ClutchEngagement:     f32(b, 248),
		ClutchGearboxRPM:     f32(b, 252),
		TransmissionMaxSpeed: f32(b, 256),
		GearRatios:           gearRatios(b, 260),
	}

	// Grid position and field size share a word; both have sentinels.
	grid := binary.LittleEndian.Uint32(b[132:136])
	p.StartPosition = int(grid >> 4)
	if p.StartPosition >= 4096 {
		p.StartPosition = -1
	}
	p.CarsInRace = int(grid & 0xFF)
	if p.CarsInRace == 0xFF {
		p.CarsInRace = -1
	}

	// Current and suggested gear are nibble-packed.
	gears := b[144]
	p.SuggestedGear = int(gears >> 4)
	if p.SuggestedGear == noGear {
		p.SuggestedGear = -1
	}
	p.CurrentGear = int(gears & 0xF)
	if p.CurrentGear == noGear {
		p.CurrentGear = -1
	}

	return p, nil
}

// SpeedKMH returns the car speed converted from m/s to km/h.
func (p *Packet) SpeedKMH() float64 {
	return p.CarSpeed * 3.6
}

// ThrottlePct returns the throttle input normalized to 0..1.
func (p *Packet) ThrottlePct() float64 {
	return float64(p.Throttle) / 255.0
}

// BrakePct returns the brake input normalized to 0..1.
func (p *Packet) BrakePct() float64 {
	return float64(p.Brake) / 255.0
}

// GearLabel returns a display label for the current gear:
// "R" for reverse, "N" when unknown, otherwise the gear number.
func (p *Packet) GearLabel() string {
	switch {
	case p.CurrentGear < 0:
		return "N"
	case p.CurrentGear == 0:
		return "R"
	default:
		return string(rune('0' + p.CurrentGear))
	}
}

// FuelPct returns the fuel level as a percentage of capacity.
func (p *Packet) FuelPct() float64 {
	if p.GasCapacity <= 0 {
		return 0
	}
	return p.GasLevel / p.GasCapacity * 100
}

func f32(b []byte, off int) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b[off : off+4])))
}

func vectorAt(b []byte, off int) Vector {
	return Vector{X: f32(b, off), Y: f32(b, off+4), Z: f32(b, off+8)}
}

// wheelAt decodes one wheel. The wire carries wheel rotation in
// radians per second; revolutions and ground speed are derived.
func wheelAt(b []byte, suspOff, radiusOff, rpsOff, tempOff int) Wheel {
	radius := f32(b, radiusOff)
	rps := f32(b, rpsOff) / (2 * math.Pi)
	return Wheel{
		SuspensionHeight: f32(b, suspOff),
		Radius:           radius,
		RPS:              rps,
		GroundSpeed:      2 * math.Pi * radius * rps,
		Temperature:      f32(b, tempOff),
	}
}

func parseFlags(a uint16) Flags {
	bit := func(n uint) bool { return a&(1<<n) != 0 }
	return Flags{
		CarOnTrack:            bit(0),
		Paused:                bit(1),
		LoadingOrProcessing:   bit(2),
		InGear:                bit(3),
		HasTurbo:              bit(4),
		RevLimiterAlertActive: bit(5),
		HandBrakeActive:       bit(6),
		LightsActive:          bit(7),
		HighBeamsActive:       bit(8),
		LowBeamsActive:        bit(9),
		ASMActive:             bit(10),
		TCSActive:             bit(11),
	}
}

// gearRatios reads up to 8 ratios, stopping at the first zero.
func gearRatios(b []byte, off int) []float64 {
	ratios := make([]float64, 0, 8)
	for i := 0; i < 8; i++ {
		r := f32(b, off+i*4)
		if r == 0 {
			break
		}
		ratios = append(ratios, r)
	}
	return ratios
}

func sentinel16(v uint16, sentinel uint16) int {
	if v == sentinel {
		return -1
	}
	return int(v)
}

func sentinel32(v uint32, sentinel uint32) int64 {
	if v == sentinel {
		return -1
	}
	return int64(v)
}
