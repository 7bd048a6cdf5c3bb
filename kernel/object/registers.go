package object

// Registers is the full RISC-V register file saved across a trap: the
// 31 general-purpose registers (x1..x31, x0 is hardwired zero and never
// saved) plus the three supervisor CSRs a trap handler must preserve to
// resume the interrupted context faithfully.
type Registers struct {
	RA, SP, GP, TP         uint64
	T0, T1, T2             uint64
	S0, S1                 uint64
	A0, A1, A2, A3, A4, A5, A6, A7 uint64
	S2, S3, S4, S5, S6, S7, S8, S9, S10, S11 uint64
	T3, T4, T5, T6         uint64

	Sepc, Sstatus, Scause uint64
}

// Reg indexes a GPR by its RISC-V x1..x31 number, used by the trap
// dispatcher to read/write argument registers without a 31-case switch
// at every call site.
func (r *Registers) Reg(n int) *uint64 {
	switch n {
	case 1:
		return &r.RA
	case 2:
		return &r.SP
	case 3:
		return &r.GP
	case 4:
		return &r.TP
	case 5:
		return &r.T0
	case 6:
		return &r.T1
	case 7:
		return &r.T2
	case 8:
		return &r.S0
	case 9:
		return &r.S1
	case 10:
		return &r.A0
	case 11:
		return &r.A1
	case 12:
		return &r.A2
	case 13:
		return &r.A3
	case 14:
		return &r.A4
	case 15:
		return &r.A5
	case 16:
		return &r.A6
	case 17:
		return &r.A7
	case 18:
		return &r.S2
	case 19:
		return &r.S3
	case 20:
		return &r.S4
	case 21:
		return &r.S5
	case 22:
		return &r.S6
	case 23:
		return &r.S7
	case 24:
		return &r.S8
	case 25:
		return &r.S9
	case 26:
		return &r.S10
	case 27:
		return &r.S11
	case 28:
		return &r.T3
	case 29:
		return &r.T4
	case 30:
		return &r.T5
	case 31:
		return &r.T6
	default:
		return nil
	}
}
