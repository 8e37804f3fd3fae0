package ai

// ShelfDetectionPrompt asks the model for a flat list of visible product facings.
// %s is replaced with the comma separated list of expected product names.
const ShelfDetectionPrompt = `
You are a retail shelf auditor. Look at the shelf photo and list every visible product facing.

### RULES
1. One entry per visible front-facing unit. Three identical cans side by side are three entries.
2. Use the product name printed on the package. Prefer one of the known names below when it fits.
3. Do not guess products that are hidden or cut off.

### KNOWN PRODUCTS
%s

### OUTPUT FORMAT
Return only a JSON object:
{
  "predictions": [
    {"class": "product name", "confidence": 0.0-1.0, "x": 0.5, "y": 0.5, "width": 0.1, "height": 0.2}
  ]
}
Coordinates are the box centre and size relative to the image (0..1).
Return {"predictions": []} when the shelf is empty.
`
