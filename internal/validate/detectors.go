package validate

import (
	"regexp"
	"strings"

	"github.com/lysithea/pkg/models"
)

// Each capability has an independent static detector over the artifact
// body. Detectors never execute the generated code; they look for the
// structural signature the vetted patterns establish for that capability.
type detectorFunc func(body string) (bool, string)

var detectors = map[models.Capability]detectorFunc{
	models.CapAuthRequired:     detectAuthRequired,
	models.CapPagination:       detectPagination,
	models.CapParameterizedSQL: detectParameterizedSQL,
	models.CapDuplicateCheck:   detectDuplicateCheck,
	models.CapSoftDelete:       detectSoftDelete,
	models.CapErrorHandling:    detectErrorHandling,
}

var (
	// A recognized auth guard either wraps the handler as route middleware
	// or runs as a standalone token verification before handler logic.
	authGuardRe   = regexp.MustCompile(`(?i)\b(authenticateToken|requireAuth|verifyToken|isAuthenticated)\b`)
	routeGuardRe  = regexp.MustCompile(`router\.(get|post|put|patch|delete)\(\s*['"][^'"]*['"]\s*,\s*(authenticateToken|requireAuth|verifyToken|isAuthenticated)\b`)
	jwtVerifyRe   = regexp.MustCompile(`jwt\.verify\(`)
	routeMethodRe = regexp.MustCompile(`router\.(get|post|put|patch|delete)\(`)

	pageParamRe  = regexp.MustCompile(`(?i)\b(page|offset)\b`)
	limitParamRe = regexp.MustCompile(`(?i)\blimit\b`)
	limitClampRe = regexp.MustCompile(`(?i)(Math\.min\s*\(\s*[^)]*limit|limit\s*>\s*\d+|LEAST\s*\(\s*[^)]*limit|LIMIT\s+LEAST)`)

	boundParamRe = regexp.MustCompile(`\$\d+`)
	// Request-derived values concatenated or interpolated into a SQL
	// string. The vetted patterns always pass them as bound parameters.
	sqlConcatRe = regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE)[^;]*['"` + "`" + `]\s*\+|\+\s*(req\.(params|query|body)|resource|id)\b[^;]*(FROM|WHERE|INTO|SET)|\$\{\s*req\.(params|query|body)`)
	sqlStmtRe   = regexp.MustCompile(`(?i)\b(SELECT|INSERT\s+INTO|UPDATE|DELETE\s+FROM)\b`)

	existenceCheckRe = regexp.MustCompile(`(?i)SELECT\s+(id|1|\*|COUNT)[^;]*\bWHERE\b`)
	mutationRe       = regexp.MustCompile(`(?i)\b(INSERT\s+INTO|UPDATE\s+\w+\s+SET)\b`)
	conflictRe       = regexp.MustCompile(`status\(\s*409\s*\)|already exists|DUPLICATE`)
	onConflictRe     = regexp.MustCompile(`(?i)ON\s+CONFLICT`)

	hardDeleteRe = regexp.MustCompile(`(?i)DELETE\s+FROM`)
	softDeleteRe = regexp.MustCompile(`(?i)(deleted_at\s*=|is_deleted\s*=\s*(true|TRUE|1)|SET\s+deleted_at)`)

	tryCatchRe    = regexp.MustCompile(`(?s)try\s*\{.*\}\s*catch\s*\(`)
	errCallbackRe = regexp.MustCompile(`if\s*\(\s*!?err\b`)
	errorStatusRe = regexp.MustCompile(`status\(\s*(4\d\d|5\d\d)\s*\)`)
	errorCodeRe   = regexp.MustCompile(`(?i)(code\s*:\s*['"][A-Z_]+['"]|error\s*:\s*\{|RAISE\s+EXCEPTION)`)
)

func detectAuthRequired(body string) (bool, string) {
	if routeGuardRe.MatchString(body) {
		return true, ""
	}
	// A guard referenced anywhere before the first route registration
	// still counts (router.use(authenticateToken) style).
	if loc := authGuardRe.FindStringIndex(body); loc != nil {
		routeLoc := routeMethodRe.FindStringIndex(body)
		if routeLoc == nil || loc[0] < routeLoc[0] {
			return true, ""
		}
	}
	if jwtVerifyRe.MatchString(body) {
		return true, ""
	}
	return false, "no recognized authentication guard precedes the handler logic"
}

func detectPagination(body string) (bool, string) {
	if !pageParamRe.MatchString(body) {
		return false, "no page/offset parameter found"
	}
	if !limitParamRe.MatchString(body) {
		return false, "no limit parameter found"
	}
	if !limitClampRe.MatchString(body) {
		return false, "limit parameter is not clamped to a maximum"
	}
	return true, ""
}

func detectParameterizedSQL(body string) (bool, string) {
	if !sqlStmtRe.MatchString(body) {
		// No SQL in the body means nothing to parameterize.
		return true, ""
	}
	if sqlConcatRe.MatchString(body) {
		return false, "request-derived value is concatenated or interpolated into a SQL clause"
	}
	if !boundParamRe.MatchString(body) {
		return false, "SQL statements use no positional bound parameters"
	}
	return true, ""
}

func detectDuplicateCheck(body string) (bool, string) {
	// A SQL-level conflict guard is an accepted duplicate check.
	if onConflictRe.MatchString(body) && mutationRe.MatchString(body) {
		return true, ""
	}
	check := existenceCheckRe.FindStringIndex(body)
	if check == nil {
		return false, "no existence query found before the mutation"
	}
	mut := mutationRe.FindStringIndex(body)
	if mut == nil {
		return false, "no create/update mutation found"
	}
	if check[0] >= mut[0] {
		return false, "existence query does not precede the mutation"
	}
	if !conflictRe.MatchString(body) {
		return false, "duplicate case does not produce a conflict response"
	}
	return true, ""
}

func detectSoftDelete(body string) (bool, string) {
	if hardDeleteRe.MatchString(body) {
		return false, "body issues a hard DELETE FROM instead of a soft delete"
	}
	if !softDeleteRe.MatchString(body) {
		return false, "no deleted_at/is_deleted update found"
	}
	return true, ""
}

func detectErrorHandling(body string) (bool, string) {
	// SQL-only artifacts distinguish failure via exceptions or conflict
	// clauses rather than HTTP statuses.
	if !routeMethodRe.MatchString(body) && !strings.Contains(body, "function") && sqlStmtRe.MatchString(body) {
		if errorCodeRe.MatchString(body) || onConflictRe.MatchString(body) {
			return true, ""
		}
		return false, "SQL failure path is not observably distinguished (no exception or conflict clause)"
	}
	// Callback-style error branches count the same as try/catch.
	if !tryCatchRe.MatchString(body) && !errCallbackRe.MatchString(body) {
		return false, "fallible operations have no distinguished failure path"
	}
	if !errorStatusRe.MatchString(body) {
		return false, "failure path does not return a non-2xx status"
	}
	if !errorCodeRe.MatchString(body) {
		return false, "failure response carries no machine-readable error code"
	}
	return true, ""
}

// Detect runs the detector for cap against body. Unknown capabilities are
// reported as unsatisfied so a typo in a pattern's declared guarantees
// surfaces as a violation instead of a silent pass.
func Detect(body string, cap models.Capability) (bool, string) {
	det, ok := detectors[cap]
	if !ok {
		return false, "no detector registered for capability"
	}
	return det(body)
}

// Known reports whether a detector exists for cap.
func Known(cap models.Capability) bool {
	_, ok := detectors[cap]
	return ok
}
