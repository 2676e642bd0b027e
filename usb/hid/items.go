package hid

// Short item tags, per HID 1.11 §6.2.2.
const (
	tagInput         = 0x8
	tagOutput        = 0x9
	tagFeature       = 0xB
	tagCollection    = 0xA
	tagEndCollection = 0xC

	tagUsagePage      = 0x0
	tagLogicalMinimum = 0x1
	tagLogicalMaximum = 0x2
	tagReportSize     = 0x7
	tagReportID       = 0x8
	tagReportCount    = 0x9

	tagUsage        = 0x0
	tagUsageMinimum = 0x1
	tagUsageMaximum = 0x2
)

// Main item flag bits for Input, Output and Feature items. The
// zero-valued names exist so descriptors read like the HID spec's
// notation, e.g. MainData|MainVar|MainAbs.
const (
	MainData  uint32 = 0x00
	MainConst uint32 = 0x01
	MainArray uint32 = 0x00
	MainVar   uint32 = 0x02
	MainAbs   uint32 = 0x00
	MainRel   uint32 = 0x04
	MainWrap  uint32 = 0x08
)

// Collection kinds.
const (
	CollectionPhysical    uint8 = 0x00
	CollectionApplication uint8 = 0x01
	CollectionLogical     uint8 = 0x02
)

// Usage pages and usages this firmware emits.
const (
	UsagePageGenericDesktop uint32 = 0x01
	UsagePageKeyboard       uint32 = 0x07
	UsagePageLEDs           uint32 = 0x08

	UsageKeyboard uint32 = 0x06
)

// UsagePage is the Usage Page global item.
type UsagePage struct {
	Page uint32
}

func (u UsagePage) encode(e *encoder) error {
	return e.short(tagUsagePage, ItemTypeGlobal, dataU32(u.Page))
}

// Usage is the Usage local item.
type Usage struct {
	Usage uint32
}

func (u Usage) encode(e *encoder) error {
	return e.short(tagUsage, ItemTypeLocal, dataU32(u.Usage))
}

// UsageMinimum is the Usage Minimum local item.
type UsageMinimum struct {
	Min uint32
}

func (u UsageMinimum) encode(e *encoder) error {
	return e.short(tagUsageMinimum, ItemTypeLocal, dataU32(u.Min))
}

// UsageMaximum is the Usage Maximum local item.
type UsageMaximum struct {
	Max uint32
}

func (u UsageMaximum) encode(e *encoder) error {
	return e.short(tagUsageMaximum, ItemTypeLocal, dataU32(u.Max))
}

// LogicalMinimum is the Logical Minimum global item. Encoded signed.
type LogicalMinimum struct {
	Min int32
}

func (l LogicalMinimum) encode(e *encoder) error {
	return e.short(tagLogicalMinimum, ItemTypeGlobal, dataI32(l.Min))
}

// LogicalMaximum is the Logical Maximum global item. Encoded signed,
// so 255 takes two bytes.
type LogicalMaximum struct {
	Max int32
}

func (l LogicalMaximum) encode(e *encoder) error {
	return e.short(tagLogicalMaximum, ItemTypeGlobal, dataI32(l.Max))
}

// ReportSize is the Report Size global item, in bits per field.
type ReportSize struct {
	Bits uint32
}

func (r ReportSize) encode(e *encoder) error {
	return e.short(tagReportSize, ItemTypeGlobal, dataU32(r.Bits))
}

// ReportCount is the Report Count global item.
type ReportCount struct {
	Count uint32
}

func (r ReportCount) encode(e *encoder) error {
	return e.short(tagReportCount, ItemTypeGlobal, dataU32(r.Count))
}

// ReportID is the Report ID global item. Boot-protocol reports omit it.
type ReportID struct {
	ID uint8
}

func (r ReportID) encode(e *encoder) error {
	return e.short(tagReportID, ItemTypeGlobal, Data{r.ID})
}

// Input is the Input main item.
type Input struct {
	Flags uint32
}

func (i Input) encode(e *encoder) error {
	return e.short(tagInput, ItemTypeMain, dataU32(i.Flags))
}

// Output is the Output main item.
type Output struct {
	Flags uint32
}

func (o Output) encode(e *encoder) error {
	return e.short(tagOutput, ItemTypeMain, dataU32(o.Flags))
}

// Feature is the Feature main item.
type Feature struct {
	Flags uint32
}

func (f Feature) encode(e *encoder) error {
	return e.short(tagFeature, ItemTypeMain, dataU32(f.Flags))
}

// Collection groups items and emits the matching End Collection.
type Collection struct {
	Kind  uint8
	Items []Item
}

func (c Collection) encode(e *encoder) error {
	if err := e.short(tagCollection, ItemTypeMain, Data{c.Kind}); err != nil {
		return err
	}
	for _, it := range c.Items {
		if it == nil {
			return errNilItem
		}
		if err := it.encode(e); err != nil {
			return err
		}
	}
	return e.short(tagEndCollection, ItemTypeMain, nil)
}
