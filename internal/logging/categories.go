package logging

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// Config logs to the config category
func Config(format string, args ...interface{}) {
	Get(CategoryConfig).Info(format, args...)
}

// Nav logs to the nav category
func Nav(format string, args ...interface{}) {
	Get(CategoryNav).Info(format, args...)
}

// NavDebug logs debug to the nav category
func NavDebug(format string, args ...interface{}) {
	Get(CategoryNav).Debug(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// StoreWarn logs a warning to the store category
func StoreWarn(format string, args ...interface{}) {
	Get(CategoryStore).Warn(format, args...)
}

// StoreError logs error to the store category
func StoreError(format string, args ...interface{}) {
	Get(CategoryStore).Error(format, args...)
}

// Content logs to the content category
func Content(format string, args ...interface{}) {
	Get(CategoryContent).Info(format, args...)
}

// ContentDebug logs debug to the content category
func ContentDebug(format string, args ...interface{}) {
	Get(CategoryContent).Debug(format, args...)
}

// Admin logs to the admin category
func Admin(format string, args ...interface{}) {
	Get(CategoryAdmin).Info(format, args...)
}

// AdminDebug logs debug to the admin category
func AdminDebug(format string, args ...interface{}) {
	Get(CategoryAdmin).Debug(format, args...)
}

// Geo logs to the geo category
func Geo(format string, args ...interface{}) {
	Get(CategoryGeo).Info(format, args...)
}

// GeoDebug logs debug to the geo category
func GeoDebug(format string, args ...interface{}) {
	Get(CategoryGeo).Debug(format, args...)
}

// GeoError logs error to the geo category
func GeoError(format string, args ...interface{}) {
	Get(CategoryGeo).Error(format, args...)
}

// Region logs to the region category
func Region(format string, args ...interface{}) {
	Get(CategoryRegion).Info(format, args...)
}

// RegionDebug logs debug to the region category
func RegionDebug(format string, args ...interface{}) {
	Get(CategoryRegion).Debug(format, args...)
}

// UI logs to the ui category
func UI(format string, args ...interface{}) {
	Get(CategoryUI).Info(format, args...)
}

// UIDebug logs debug to the ui category
func UIDebug(format string, args ...interface{}) {
	Get(CategoryUI).Debug(format, args...)
}
