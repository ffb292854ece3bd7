package app

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nourabuild/advisory-service/internal/services/calculator"
)

func calculationDetails(err error) map[string]string {
	switch {
	case errors.Is(err, calculator.ErrInvalidAmount):
		return map[string]string{"loanAmount": "must_be_positive"}
	case errors.Is(err, calculator.ErrInvalidRate):
		return map[string]string{"interestRate": "between_0_and_100"}
	case errors.Is(err, calculator.ErrInvalidTenure):
		return map[string]string{"tenure": "between_1_and_600_months"}
	case errors.Is(err, calculator.ErrOutOfRange):
		return map[string]string{"loanAmount": "result_out_of_range"}
	}
	return nil
}

func (a *App) HandleCalculateEMI(c *gin.Context) {
	var req CalculateEMIRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := calculator.CalculateEMI(*req.LoanAmount, *req.InterestRate, *req.Tenure)
	if err != nil {
		writeError(c, ErrCalculation, calculationDetails(err))
		return
	}

	c.JSON(http.StatusOK, CalculateEMIResponse(res))
}

func (a *App) HandleAmortizationSchedule(c *gin.Context) {
	var req CalculateEMIRequest
	if !bindJSON(c, &req) {
		return
	}

	schedule, err := calculator.AmortizationSchedule(*req.LoanAmount, *req.InterestRate, *req.Tenure)
	if err != nil {
		writeError(c, ErrCalculation, calculationDetails(err))
		return
	}

	c.JSON(http.StatusOK, ScheduleResponse(schedule))
}
