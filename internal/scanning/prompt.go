package scanning

// invoiceScanPrompt is the shared prompt used by all LLM providers for reading invoices
const invoiceScanPrompt = `You are analyzing an invoice or receipt. Carefully read all text in the image and extract the following information:

1. **Vendor**: the merchant or business that issued the document, usually the largest text in the header.

2. **Date**: the invoice or purchase date, converted to ISO 8601 format (YYYY-MM-DD). Invoices are often written day first (DD/MM/YYYY).

3. **Total**: the final total or amount due printed on the document, usually labeled "TOTAL", "Importe total", "Amount Due" or similar.

4. **Items**: every line of the detail table with its description, quantity, unit price and line amount.

Return ONLY valid JSON in this exact format:
{
  "vendor": "Business Name",
  "date": "YYYY-MM-DD",
  "total": 0.00,
  "items": [
    {"description": "Item", "quantity": 1, "unit_price": 0.00, "amount": 0.00}
  ]
}

Important:
- Amounts must be numbers (not strings) exactly as printed, without currency symbols
- Do not compute or correct any amount, copy what is printed
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`
