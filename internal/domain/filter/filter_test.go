package filter_test

import (
	"strconv"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/crimemap/internal/domain/filter"
	"github.com/okian/crimemap/internal/domain/model"
)

func avon() *model.Dataset {
	return &model.Dataset{
		Fidelity: model.FidelityHigh,
		Records: []model.Record{
			{Constabulary: "Avon and Somerset", CrimeType: "Burglary", Month: "2023-01", Latitude: 51.45, Longitude: -2.58},
			{Constabulary: "Avon and Somerset", CrimeType: "Robbery", Month: "2023-01", Latitude: 51.40, Longitude: -2.50},
			{Constabulary: "Avon and Somerset", CrimeType: "Burglary", Month: "2023-02", Latitude: 51.38, Longitude: -2.36},
			{Constabulary: "Avon and Somerset", CrimeType: "Burglary", Month: "2023-01", Latitude: 51.46, Longitude: -2.59},
			{Constabulary: "Avon and Somerset", CrimeType: "", Month: "2023-03", Latitude: 51.30, Longitude: -2.40},
		},
	}
}

func TestApply(t *testing.T) {
	Convey("Given a high fidelity dataset", t, func() {
		ds := avon()

		Convey("When every dimension matches two records", func() {
			out := filter.Apply(ds, model.Selection{
				Fidelity: model.FidelityHigh, Constabulary: "Avon and Somerset", CrimeType: "Burglary", Month: "2023-01",
			})

			Convey("Then both are returned in dataset order", func() {
				So(out, ShouldHaveLength, 2)
				So(out[0].Latitude, ShouldEqual, 51.45)
				So(out[1].Latitude, ShouldEqual, 51.46)
			})
		})

		Convey("When matching is attempted with different case", func() {
			out := filter.Apply(ds, model.Selection{
				Fidelity: model.FidelityHigh, Constabulary: "Avon and Somerset", CrimeType: "burglary", Month: "2023-01",
			})

			Convey("Then nothing matches", func() {
				So(out, ShouldNotBeNil)
				So(out, ShouldBeEmpty)
			})
		})

		Convey("When the month has no incidents", func() {
			out := filter.Apply(ds, model.Selection{
				Fidelity: model.FidelityHigh, Constabulary: "Avon and Somerset", CrimeType: "Burglary", Month: "2022-12",
			})

			Convey("Then the result is empty", func() {
				So(out, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a low fidelity selection that still names a constabulary", t, func() {
		ds := &model.Dataset{
			Fidelity: model.FidelityLow,
			Records: []model.Record{
				{CrimeType: "Burglary", Count: 5, HasCount: true},
				{CrimeType: "Robbery", Count: 9, HasCount: true},
				{CrimeType: "Burglary", Count: 3, HasCount: true},
			},
		}
		sel := model.Selection{Fidelity: model.FidelityLow, Constabulary: "Kent", Month: "2023-01", CrimeType: "Burglary"}

		Convey("Then only the crime type is used", func() {
			So(filter.Apply(ds, sel), ShouldHaveLength, 2)
		})
	})

	Convey("Given a nil dataset", t, func() {
		Convey("Then an empty slice is returned", func() {
			out := filter.Apply(nil, model.Selection{Fidelity: model.FidelityLow, CrimeType: "Burglary"})
			So(out, ShouldNotBeNil)
			So(out, ShouldBeEmpty)
		})
	})
}

func TestOptions(t *testing.T) {
	Convey("Given the records of a dataset", t, func() {
		d := filter.Options(avon().Records)

		Convey("Then each dimension lists its distinct values sorted", func() {
			So(d.Constabularies, ShouldResemble, []string{"Avon and Somerset"})
			So(d.CrimeTypes, ShouldResemble, []string{"Burglary", "Robbery"})
			So(d.Months, ShouldResemble, []string{"2023-01", "2023-02", "2023-03"})
		})

		Convey("And membership can be checked", func() {
			So(filter.Contains(d.Months, "2023-02"), ShouldBeTrue)
			So(filter.Contains(d.Months, "2023-04"), ShouldBeFalse)
			So(filter.Contains(nil, "x"), ShouldBeFalse)
		})
	})

	Convey("Given no records", t, func() {
		d := filter.Options(nil)

		Convey("Then the lists are empty but not nil", func() {
			So(d.CrimeTypes, ShouldNotBeNil)
			So(d.CrimeTypes, ShouldBeEmpty)
		})
	})
}

func TestApplyRemoval(t *testing.T) {
	Convey("Given the records selected from a dataset", t, func() {
		ds := avon()
		sel := model.Selection{Fidelity: model.FidelityHigh, Constabulary: "Avon and Somerset", CrimeType: "Burglary", Month: "2023-01"}
		full := filter.Apply(ds, sel)
		So(full, ShouldHaveLength, 2)

		Convey("When each matching record is removed from the dataset in turn", func() {
			for _, gone := range full {
				rest := &model.Dataset{Fidelity: ds.Fidelity}
				for _, r := range ds.Records {
					if r != gone {
						rest.Records = append(rest.Records, r)
					}
				}

				want := make([]model.Record, 0, len(full)-1)
				for _, r := range full {
					if r != gone {
						want = append(want, r)
					}
				}

				Convey("Then the selection loses exactly that record at latitude "+strconv.FormatFloat(gone.Latitude, 'f', 2, 64), func() {
					So(filter.Apply(rest, sel), ShouldResemble, want)
				})
			}
		})
	})
}

func TestContains(t *testing.T) {
	Convey("Given the crime types of a dataset", t, func() {
		types := filter.Options(avon().Records).CrimeTypes

		Convey("Then only exact values are contained", func() {
			So(filter.Contains(types, "Burglary"), ShouldBeTrue)
			So(filter.Contains(types, "burglary"), ShouldBeFalse)
			So(filter.Contains(types, "Arson"), ShouldBeFalse)
			So(filter.Contains(nil, "Burglary"), ShouldBeFalse)
		})
	})
}
