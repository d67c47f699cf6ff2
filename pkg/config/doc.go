// Configuration files are YAML. Values of the form ${NAME} are replaced with
// the environment variable NAME before parsing:
//
//	simulation:
//	  pool:
//	    name: bullets
//	    size: ${POOL_SIZE}
//	  steps: 5000
//	  acquire_ratio: 0.7
//	observability:
//	  log_level: debug
//
// LoadConfig applies the file over Default and validates the result. The
// poolsim command layers flags and POOLSIM_* environment variables on top of
// the file.
package config
