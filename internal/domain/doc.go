// Package domain models daily weather observations for Nigerian states and
// their reduction to the monthly climate tables used by the food-security
// modeling datasets.
//
// # Data Source
//
// Daily observations come from the NASA POWER point API
// (https://power.larc.nasa.gov/api/temporal/daily/point), community "AG".
// A request is keyed by latitude, longitude, a list of parameter codes and an
// inclusive start/end day (YYYYMMDD). The provider rejects ranges above an
// undocumented size, so callers split the period with [SplitRange].
//
// Parameter codes:
//
//	T2M          mean air temperature at 2 m (°C)
//	T2M_MAX      daily maximum temperature at 2 m (°C)
//	T2M_MIN      daily minimum temperature at 2 m (°C)
//	PRECTOTCORR  bias-corrected precipitation (mm/day)
//	RH2M         relative humidity at 2 m (%)
//
// Missing values:
//
//	The provider reports -999 (the header "fill_value") for days it cannot
//	compute. Those days carry no value for the parameter; they are never
//	treated as zero.
//
// # Monthly Aggregation
//
// [AggregateMonth] reduces one state's daily observations for one calendar
// month:
//
//	Avg_Temp_C             mean of T2M
//	Max_Temp_C / Min_Temp_C  max of T2M_MAX / min of T2M_MIN
//	Temp_Range_C           Max_Temp_C - Min_Temp_C, missing when Min exceeds Max
//	Heat_Stress_Days       days with T2M_MAX > 35 °C
//	Cold_Stress_Days       days with T2M_MIN < 15 °C
//	Rainfall_mm            sum of PRECTOTCORR
//	Rainy_Days             days with PRECTOTCORR > 0
//	Max_Daily_Rainfall_mm  max of PRECTOTCORR
//	Rainfall_Intensity     Rainfall_mm / Rainy_Days, 0 without rainy days
//	*_Humidity_Percent     mean/min/max of RH2M
//
// Rounding happens before derived values are computed: temperatures and
// humidity to 2 decimals, rainfall to 1, intensity to 2, indices to 3. This
// keeps Temp_Range_C equal to the written Max minus the written Min.
//
// A month with no observations still yields a record; every metric is then
// missing and renders as [MissingValue].
//
// # Derived Indices
//
// Both indices compare the month against a climatological baseline: the mean
// monthly rainfall of the same state and calendar month over every year with
// data ([BuildBaseline]).
//
//	Drought_Index    = clamp(1 - R/E, 0, 1), 0 when E < 1 mm (dry season)
//	Flood_Risk_Index = clamp(0.5*min(maxDaily/50, 1) + 0.5*min(R/(2*max(E, 1)), 1), 0, 1)
//
// where R is Rainfall_mm, E the baseline and 50 mm/day the heavy rainfall
// threshold.
//
// # CO2
//
// Monthly Mauna Loa CO2 comes from the NOAA GML text file co2_mm_mlo.txt.
// Comment lines start with '#'; data columns are year, month, decimal date,
// monthly average (ppm), ... Negative averages are NOAA's missing sentinel.
// The growth rate is the difference to the same month one year earlier.
package domain
