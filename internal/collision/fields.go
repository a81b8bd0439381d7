package collision

// Field names a column of the collision schema.
type Field string

const (
	FieldCrashDate   Field = "crash_date"
	FieldCrashTime   Field = "crash_time"
	FieldBorough     Field = "borough"
	FieldZipCode     Field = "zip_code"
	FieldLatitude    Field = "latitude"
	FieldLongitude   Field = "longitude"
	FieldLocation    Field = "location"
	FieldOnStreet    Field = "on_street_name"
	FieldCrossStreet Field = "cross_street_name"
	FieldOffStreet   Field = "off_street_name"

	FieldPersonsInjured     Field = "persons_injured"
	FieldPersonsKilled      Field = "persons_killed"
	FieldPedestriansInjured Field = "pedestrians_injured"
	FieldPedestriansKilled  Field = "pedestrians_killed"
	FieldCyclistsInjured    Field = "cyclists_injured"
	FieldCyclistsKilled     Field = "cyclists_killed"
	FieldMotoristsInjured   Field = "motorists_injured"
	FieldMotoristsKilled    Field = "motorists_killed"

	FieldContributingFactor1 Field = "contributing_factor_1"
	FieldContributingFactor2 Field = "contributing_factor_2"
	FieldContributingFactor3 Field = "contributing_factor_3"
	FieldContributingFactor4 Field = "contributing_factor_4"
	FieldContributingFactor5 Field = "contributing_factor_5"

	FieldCollisionID Field = "collision_id"

	FieldVehicleType1 Field = "vehicle_type_1"
	FieldVehicleType2 Field = "vehicle_type_2"
	FieldVehicleType3 Field = "vehicle_type_3"
	FieldVehicleType4 Field = "vehicle_type_4"
	FieldVehicleType5 Field = "vehicle_type_5"
)

// Fields lists every field in source column order.
var Fields = []Field{
	FieldCrashDate, FieldCrashTime, FieldBorough, FieldZipCode,
	FieldLatitude, FieldLongitude, FieldLocation,
	FieldOnStreet, FieldCrossStreet, FieldOffStreet,
	FieldPersonsInjured, FieldPersonsKilled,
	FieldPedestriansInjured, FieldPedestriansKilled,
	FieldCyclistsInjured, FieldCyclistsKilled,
	FieldMotoristsInjured, FieldMotoristsKilled,
	FieldContributingFactor1, FieldContributingFactor2, FieldContributingFactor3,
	FieldContributingFactor4, FieldContributingFactor5,
	FieldCollisionID,
	FieldVehicleType1, FieldVehicleType2, FieldVehicleType3,
	FieldVehicleType4, FieldVehicleType5,
}

type fieldMeta struct {
	column string
	// category is nil for non-categorical fields.
	category func(*Record) string
	missing  func(*Record) bool
}

func blank(f Field) func(*Record) bool {
	return func(r *Record) bool { return r.Blank.Has(f) }
}

func text(get func(*Record) string) func(*Record) bool {
	return func(r *Record) bool { return get(r) == "" }
}

func factor(i int) func(*Record) string {
	return func(r *Record) string { return r.ContributingFactors[i] }
}

func vehicle(i int) func(*Record) string {
	return func(r *Record) string { return r.VehicleTypes[i] }
}

var fieldInfo = map[Field]fieldMeta{
	// Rows with an unparseable timestamp never reach a Record, so these
	// are only missing when explicitly marked.
	FieldCrashDate: {column: "CRASH DATE", missing: blank(FieldCrashDate)},
	FieldCrashTime: {column: "CRASH TIME", missing: blank(FieldCrashTime)},
	FieldBorough: {
		column:   "BOROUGH",
		category: func(r *Record) string { return string(r.Borough) },
		missing:  func(r *Record) bool { return r.Borough == BoroughNone },
	},
	FieldZipCode: {
		column:   "ZIP CODE",
		category: func(r *Record) string { return r.ZipCode },
		missing:  text(func(r *Record) string { return r.ZipCode }),
	},
	FieldLatitude:  {column: "LATITUDE", missing: func(r *Record) bool { return r.Latitude == nil }},
	FieldLongitude: {column: "LONGITUDE", missing: func(r *Record) bool { return r.Longitude == nil }},
	FieldLocation:  {column: "LOCATION", missing: text(func(r *Record) string { return r.Location })},
	FieldOnStreet: {
		column:   "ON STREET NAME",
		category: func(r *Record) string { return r.OnStreet },
		missing:  text(func(r *Record) string { return r.OnStreet }),
	},
	FieldCrossStreet: {
		column:   "CROSS STREET NAME",
		category: func(r *Record) string { return r.CrossStreet },
		missing:  text(func(r *Record) string { return r.CrossStreet }),
	},
	FieldOffStreet: {
		column:   "OFF STREET NAME",
		category: func(r *Record) string { return r.OffStreet },
		missing:  text(func(r *Record) string { return r.OffStreet }),
	},

	FieldPersonsInjured:     {column: "NUMBER OF PERSONS INJURED", missing: blank(FieldPersonsInjured)},
	FieldPersonsKilled:      {column: "NUMBER OF PERSONS KILLED", missing: blank(FieldPersonsKilled)},
	FieldPedestriansInjured: {column: "NUMBER OF PEDESTRIANS INJURED", missing: blank(FieldPedestriansInjured)},
	FieldPedestriansKilled:  {column: "NUMBER OF PEDESTRIANS KILLED", missing: blank(FieldPedestriansKilled)},
	FieldCyclistsInjured:    {column: "NUMBER OF CYCLIST INJURED", missing: blank(FieldCyclistsInjured)},
	FieldCyclistsKilled:     {column: "NUMBER OF CYCLIST KILLED", missing: blank(FieldCyclistsKilled)},
	FieldMotoristsInjured:   {column: "NUMBER OF MOTORIST INJURED", missing: blank(FieldMotoristsInjured)},
	FieldMotoristsKilled:    {column: "NUMBER OF MOTORIST KILLED", missing: blank(FieldMotoristsKilled)},

	FieldContributingFactor1: {column: "CONTRIBUTING FACTOR VEHICLE 1", category: factor(0), missing: text(factor(0))},
	FieldContributingFactor2: {column: "CONTRIBUTING FACTOR VEHICLE 2", category: factor(1), missing: text(factor(1))},
	FieldContributingFactor3: {column: "CONTRIBUTING FACTOR VEHICLE 3", category: factor(2), missing: text(factor(2))},
	FieldContributingFactor4: {column: "CONTRIBUTING FACTOR VEHICLE 4", category: factor(3), missing: text(factor(3))},
	FieldContributingFactor5: {column: "CONTRIBUTING FACTOR VEHICLE 5", category: factor(4), missing: text(factor(4))},

	FieldCollisionID: {column: "COLLISION_ID", missing: blank(FieldCollisionID)},

	FieldVehicleType1: {column: "VEHICLE TYPE CODE 1", category: vehicle(0), missing: text(vehicle(0))},
	FieldVehicleType2: {column: "VEHICLE TYPE CODE 2", category: vehicle(1), missing: text(vehicle(1))},
	FieldVehicleType3: {column: "VEHICLE TYPE CODE 3", category: vehicle(2), missing: text(vehicle(2))},
	FieldVehicleType4: {column: "VEHICLE TYPE CODE 4", category: vehicle(3), missing: text(vehicle(3))},
	FieldVehicleType5: {column: "VEHICLE TYPE CODE 5", category: vehicle(4), missing: text(vehicle(4))},
}

// LookupField resolves a field by name. Source column headers such as
// "VEHICLE TYPE CODE 1" are accepted as well.
func LookupField(name string) (Field, bool) {
	f := Field(name)
	if _, ok := fieldInfo[f]; ok {
		return f, true
	}
	for _, f := range Fields {
		if fieldInfo[f].column == name {
			return f, true
		}
	}
	return "", false
}

// Column returns the source CSV header for the field.
func (f Field) Column() string {
	return fieldInfo[f].column
}

// IsCategorical reports whether the field holds free-text category labels.
func (f Field) IsCategorical() bool {
	info, ok := fieldInfo[f]
	return ok && info.category != nil
}

// IsMissing reports whether the record has no value for the field.
func (f Field) IsMissing(r *Record) bool {
	info, ok := fieldInfo[f]
	if !ok {
		return false
	}
	return info.missing(r)
}

// slot is the 0-based index of a numbered factor or vehicle field.
func (f Field) slot() int {
	s := string(f)
	return int(s[len(s)-1] - '1')
}

// FieldSet is a small bitset over Fields.
type FieldSet uint64

func fieldBit(f Field) FieldSet {
	for i, known := range Fields {
		if known == f {
			return 1 << uint(i)
		}
	}
	return 0
}

// Has reports whether f is in the set.
func (s FieldSet) Has(f Field) bool {
	bit := fieldBit(f)
	return bit != 0 && s&bit != 0
}

// With returns a copy of the set including f.
func (s FieldSet) With(f Field) FieldSet {
	return s | fieldBit(f)
}
