package evaluation

import (
	"fmt"
	"time"

	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"
)

// sizeEpsilon absorbs float drift when comparing normalized sizes.
const sizeEpsilon = 1e-9

// Position accounts for one trade in normalized size units.
//
// The cost basis is the asset-weighted average of every lot bought. Decreasing
// the position freezes the ROI of the removed slice and never moves the basis,
// so ROI(q) is a blend of frozen and live returns weighted by size over the
// total size allocated when each slice was closed.
type Position struct {
	side      domain.Side
	entryTime time.Time

	openSize    float64 // Currently held size
	totalSize   float64 // High-water mark of allocated size
	boughtAsset float64 // Asset bought over all increases
	heldAsset   float64 // Asset still held
	breakeven   float64
	closedROI   float64 // Frozen ROI of decreased slices, weighted at decrease time

	entry *Price
	stop  *Price
	close *Price

	exitTime time.Time
	exitKind domain.ExitKind
	exitROI  float64
}

// OpenPosition opens a position of size at the entry price's current value.
// Stop and close may be nil when the trade has no such condition.
func OpenPosition(side domain.Side, size float64, entry *Price, ts time.Time, stop, closePrice *Price) (*Position, error) {
	if err := side.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrInvalidArgument, err)
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: entry price is required", ports.ErrInvalidArgument)
	}
	if err := validateSizePrice(size, entry.Get()); err != nil {
		return nil, err
	}
	if size > domain.MaxPositionSize+sizeEpsilon {
		return nil, fmt.Errorf("%w: size %v exceeds maximum position size %v", ports.ErrInvariant, size, domain.MaxPositionSize)
	}

	price := entry.Get()
	return &Position{
		side:        side,
		entryTime:   ts,
		openSize:    size,
		totalSize:   size,
		boughtAsset: size / price,
		heldAsset:   size / price,
		breakeven:   price,
		entry:       entry,
		stop:        stop,
		close:       closePrice,
	}, nil
}

func validateSizePrice(size, price float64) error {
	if size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %v", ports.ErrInvalidArgument, size)
	}
	if price <= 0 {
		return fmt.Errorf("%w: price must be positive, got %v", ports.ErrInvalidArgument, price)
	}
	return nil
}

// IncreaseSize buys size more at price and re-averages the cost basis.
func (p *Position) IncreaseSize(size, price float64) error {
	if !p.IsOpen() {
		return fmt.Errorf("%w: cannot increase an exited position", ports.ErrClosedPosition)
	}
	if err := validateSizePrice(size, price); err != nil {
		return err
	}
	if p.totalSize+size > domain.MaxPositionSize+sizeEpsilon {
		return fmt.Errorf("%w: requested size %v exceeds remaining allocation %v",
			ports.ErrInvariant, size, domain.MaxPositionSize-p.totalSize)
	}

	asset := size / price
	p.boughtAsset += asset
	p.heldAsset += asset
	p.openSize += size
	p.totalSize += size
	p.breakeven = p.totalSize / p.boughtAsset
	return nil
}

// DecreaseSize sells size at price, freezing the ROI of the removed slice.
// The position must keep some exposure; use Stop or Close to exit fully.
func (p *Position) DecreaseSize(size, price float64) error {
	if !p.IsOpen() {
		return fmt.Errorf("%w: cannot decrease an exited position", ports.ErrClosedPosition)
	}
	if err := validateSizePrice(size, price); err != nil {
		return err
	}
	if size > p.openSize+sizeEpsilon {
		return fmt.Errorf("%w: reduce size %v exceeds held size %v", ports.ErrInvariant, size, p.openSize)
	}

	heldAsset := p.heldAsset - size/p.breakeven
	if p.openSize-size <= sizeEpsilon || heldAsset <= 0 {
		return fmt.Errorf("%w: position is open but no asset left", ports.ErrInvariant)
	}

	p.closedROI += size / p.totalSize * p.roiAt(price)
	p.openSize -= size
	p.heldAsset = heldAsset
	return nil
}

// roiAt is the unblended return of price against the current basis, in percent.
func (p *Position) roiAt(price float64) float64 {
	roi := (price - p.breakeven) / p.breakeven * 100
	if p.side == domain.Short {
		return -roi
	}
	return roi
}

func (p *Position) blendedROI(price float64) float64 {
	return p.closedROI + p.openSize/p.totalSize*p.roiAt(price)
}

// UnrealizedROI returns the return of the open remainder alone at price.
func (p *Position) UnrealizedROI(price float64) (float64, error) {
	if !p.IsOpen() {
		return 0, fmt.Errorf("%w: roi is frozen after exit", ports.ErrClosedPosition)
	}
	return p.roiAt(price), nil
}

// ROI returns the blended return of the position if the open remainder were valued at price.
func (p *Position) ROI(price float64) (float64, error) {
	if !p.IsOpen() {
		return 0, fmt.Errorf("%w: roi is frozen after exit", ports.ErrClosedPosition)
	}
	return p.blendedROI(price), nil
}

// RelativeROI scales ROI by the share of the maximum allocation currently deployed.
func (p *Position) RelativeROI(price float64) (float64, error) {
	roi, err := p.ROI(price)
	if err != nil {
		return 0, err
	}
	return roi * p.openSize / domain.MaxPositionSize, nil
}

// Stop exits the position at the stop price.
func (p *Position) Stop(ts time.Time) error {
	return p.exit(ts, domain.ExitStopped, p.stop)
}

// Close exits the position at the close price.
func (p *Position) Close(ts time.Time) error {
	return p.exit(ts, domain.ExitClosed, p.close)
}

func (p *Position) exit(ts time.Time, kind domain.ExitKind, price *Price) error {
	if !p.IsOpen() {
		return fmt.Errorf("%w: position already %s", ports.ErrClosedPosition, p.exitKind)
	}
	if price == nil {
		return fmt.Errorf("%w: position has no %s price", ports.ErrLogic, kind)
	}
	if price.Get() <= 0 {
		return fmt.Errorf("%w: %s price must be positive, got %v", ports.ErrInvalidArgument, kind, price.Get())
	}

	p.exitROI = p.blendedROI(price.Get())
	p.exitTime = ts
	p.exitKind = kind
	return nil
}

// ExitROI returns the ROI frozen at exit.
func (p *Position) ExitROI() (float64, error) {
	if p.IsOpen() {
		return 0, fmt.Errorf("%w: position has not exited", ports.ErrLogic)
	}
	return p.exitROI, nil
}

// RelativeExitROI scales the exit ROI by the total size ever allocated.
func (p *Position) RelativeExitROI() (float64, error) {
	roi, err := p.ExitROI()
	if err != nil {
		return 0, err
	}
	return roi * p.totalSize / domain.MaxPositionSize, nil
}

// AddStopPrice attaches a stop price to a position opened without one.
func (p *Position) AddStopPrice(price *Price) error {
	if p.stop != nil {
		return fmt.Errorf("%w: position already has a stop price", ports.ErrLogic)
	}
	p.stop = price
	return nil
}

// Price returns the price holder for field, or nil when absent.
func (p *Position) Price(field domain.PriceField) *Price {
	switch field {
	case domain.FieldPrice:
		return p.entry
	case domain.FieldStopPrice:
		return p.stop
	case domain.FieldClosePrice:
		return p.close
	default:
		return nil
	}
}

func (p *Position) Side() domain.Side { return p.side }
func (p *Position) IsOpen() bool { return p.exitKind == domain.ExitNone }
func (p *Position) BreakEvenPrice() float64 { return p.breakeven }
func (p *Position) AssetAmount() float64 { return p.heldAsset }
func (p *Position) UsedSize() float64 { return p.openSize }
func (p *Position) TotalSize() float64 { return p.totalSize }
func (p *Position) EntryTime() time.Time { return p.entryTime }
func (p *Position) ExitTime() time.Time { return p.exitTime }
func (p *Position) ExitKind() domain.ExitKind { return p.exitKind }
func (p *Position) IsStopped() bool { return p.exitKind == domain.ExitStopped }
func (p *Position) IsClosed() bool { return p.exitKind == domain.ExitClosed }
