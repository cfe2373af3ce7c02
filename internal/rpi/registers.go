package rpi

// Bus addresses from the BCM283x/BCM2711 peripheral register map (spec.md
// §6). All of these live in the 0x7Ennnnnn "bus address" space; Map.Access
// translates them to the mmap'd virtual address.
const (
	peripheralBusBase = 0x7E000000

	GPIOBase = 0x7E200000 // GPFSELn, GPSET, GPCLR, GPLEV
	GPFSEL0  = GPIOBase + 0x00
	GPSET0   = GPIOBase + 0x1C
	GPCLR0   = GPIOBase + 0x28
	GPLEV0   = GPIOBase + 0x34

	ClockBase = 0x7E101000
	CMGP0CTL  = 0x7E101070 // GPCLK0 control
	CMGP0DIV  = 0x7E101074 // GPCLK0 divider, written by DMA
	CMPWMCTL  = ClockBase + 38*4 // 0x7E101098
	CMPWMDIV  = ClockBase + 39*4 // 0x7E10109C

	PWMBase = 0x7E20C000
	PWMCTL  = PWMBase + 0x00
	PWMSTA  = PWMBase + 0x04
	PWMDMAC = PWMBase + 0x08
	PWMRNG1 = PWMBase + 0x10
	PWMFIF1 = PWMBase + 0x18
	PWMRNG2 = PWMBase + 0x20

	DMABase     = 0x7E007000 // channel 0
	DMACS       = DMABase + 0x00
	DMACONBLKAD = DMABase + 0x04

	PadsGPIO0_27 = 0x7E10002C // drive strength, field 0x18+n

	// ClockManagerPassword is OR'd into every write to a CM_* register.
	ClockManagerPassword = 0x5A << 24

	// cacheAliasMask strips the two high bits that select the L1/L2 cache
	// alias when converting a bus address to a physical address (spec.md §4.1).
	cacheAliasMask = 0xC0000000
)

// The PWM control register bit layout, one byte per channel (channel 1 in
// bits 0-7, channel 2 in bits 8-15); see BCM2835 ARM Peripherals datasheet
// p.141. PWMCTLMax sets the same bits for both channels.
const (
	pwm1Enable = 1 << 0
	pwm1Serial = 1 << 1
	pwm1Repeat = 1 << 2
	pwm1UseFifo = 1 << 5
	// PWMCTLMax is "all channels use FIFO, repeat, serializer, enabled"
	// per spec.md §4.3.
	PWMCTLMax = pwm1Enable | pwm1Serial | pwm1Repeat | pwm1UseFifo |
		(pwm1Enable|pwm1Serial|pwm1Repeat|pwm1UseFifo)<<8

	pwmDMACEnable    = 1 << 31
	pwmDMACPanicShift = 8
	pwmDMACDreqShift  = 0
)

// PWMDMACValue builds the PWM DMAC register: DMA enable with PANIC and DREQ
// thresholds of 7 (spec.md §4.3).
const PWMDMACValue = pwmDMACEnable | 7<<pwmDMACPanicShift | 7<<pwmDMACDreqShift

// DMA channel 0 status bits used by this package (subset of bcm283x dmaStatus).
const (
	DMAReset  = 1 << 31
	DMAActive = 1 << 0
)

// CM_GP0CTL / CM_PWMCTL control word fields.
const (
	CMBusy    = 1 << 7
	CMEnab    = 1 << 4
	CMSrcPLLD = 6
	CMMash3   = 3 << 9
)

// GP0DivTuningWordMask selects the 24 low bits that carry the 12.12
// fixed-point divisor; the top byte is always the password.
const GP0DivTuningWordMask = 0x00FFFFFF

// RF output is fixed to GPIO4 (spec.md §6). GPFSEL0 packs 10 pins at 3 bits
// each; GPIO4 occupies bits 12:14.
const (
	RFOutputPin   = 4
	gpio4FselBit  = RFOutputPin * 3
	gpio4FselMask = 0x7 << gpio4FselBit

	GPIOFuncInput = 0b000
	GPIOFuncAlt0  = 0b100
)

// GPIO4FselField returns the GPFSEL0 value with GPIO4's function-select
// field replaced by fn, preserving every other pin's field.
func GPIO4FselField(current uint32, fn uint32) uint32 {
	return (current &^ uint32(gpio4FselMask)) | (fn << gpio4FselBit)
}

// PadDriveField returns the PADS_GPIO_0_27 control word for drive level n
// (0..7) with hysteresis enabled and slew rate limiting disabled, matching
// the default the BCM283x datasheet documents for this register
// (spec.md §6, §9 "field 0x18 + n").
func PadDriveField(level uint32) uint32 {
	const padPassword = 0x5A << 24
	const padSlewNotLimited = 1 << 4
	const padHysteresis = 1 << 3
	return padPassword | padSlewNotLimited | padHysteresis | (level & 0x7)
}
